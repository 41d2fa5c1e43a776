package issue

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iov-one/cashlink/cashlink"
	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/cashlink/funding"
	"github.com/iov-one/cashlink/qrsheet"
	"github.com/iov-one/weave/errors"
	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/time/rate"
)

// Issuer issues batches of cashlinks funded from a single wallet.
type Issuer struct {
	conf   Config
	ledger client.Client
	wallet *client.PrivateKey
	sheet  *qrsheet.Sheet
	logger log.Logger

	// Replaced in tests.
	now    func() time.Time
	newKey func() *client.PrivateKey
}

// NewIssuer returns an issuer that funds cashlinks from given wallet.
func NewIssuer(conf Config, ledger client.Client, wallet *client.PrivateKey, logger log.Logger) *Issuer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Issuer{
		conf:   conf,
		ledger: ledger,
		wallet: wallet,
		sheet:  qrsheet.DefaultSheet(),
		logger: logger,
		now:    time.Now,
		newKey: client.GenPrivateKey,
	}
}

// WithSheet sets the layout of the rendered codes.
func (is *Issuer) WithSheet(s *qrsheet.Sheet) *Issuer {
	is.sheet = s
	return is
}

// Run issues a single batch. It blocks until the wallet holds enough funds
// to cover the whole batch. Use the context to bound that wait.
//
// Nothing is submitted if any cashlink cannot be created. If a submission
// fails the batch is aborted and the returned report, together with the
// error, tells which cashlinks were funded.
func (is *Issuer) Run(ctx context.Context) (*Report, error) {
	plan, err := is.conf.Plan()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	walletAddr := client.Address(is.wallet)
	human, err := client.HumanAddress(is.conf.AddressPrefix, walletAddr)
	if err != nil {
		return nil, errors.Wrap(err, "wallet address")
	}
	report := &Report{
		BatchID: uuid.New().String(),
		Wallet:  human,
		Plan:    plan,
	}
	logger := is.logger.With("batch", report.BatchID)
	logger.Info("issuing cashlinks",
		"count", is.conf.Count,
		"value", is.conf.Value.String(),
		"fee", plan.Fee.String(),
		"total", plan.Total.String(),
		"wallet", human)

	if err := is.fund(ctx, logger, plan); err != nil {
		return report, err
	}

	keys := make([]*client.PrivateKey, is.conf.Count)
	report.Entries = make([]Entry, is.conf.Count)
	links := make([]string, is.conf.Count)
	for i := range keys {
		key := is.newKey()
		seed, err := client.Seed(key)
		if err != nil {
			return report, errors.Wrapf(err, "cashlink #%d", i)
		}
		link, err := cashlink.Link(is.conf.HubURL, &cashlink.Payload{
			Secret:  seed,
			Value:   plan.Value,
			Message: is.conf.Message,
		})
		if err != nil {
			return report, errors.Wrapf(err, "cashlink #%d", i)
		}
		addr := client.Address(key)
		haddr, err := client.HumanAddress(is.conf.AddressPrefix, addr)
		if err != nil {
			return report, errors.Wrapf(err, "cashlink #%d", i)
		}
		keys[i] = key
		links[i] = link
		report.Entries[i] = Entry{
			Index:        i,
			Address:      addr,
			HumanAddress: haddr,
			Link:         link,
			Err:          ErrNotSubmitted,
		}
	}
	logger.Info("created cashlinks", "count", len(links))
	logger.Debug("cashlinks", "links", "\n"+strings.Join(links, "\n"))

	stamp := is.now().Unix()
	var sheet bytes.Buffer
	if err := is.sheet.Render(&sheet, links); err != nil {
		return report, errors.Wrap(err, "render")
	}
	report.SheetPath = filepath.Join(is.conf.OutputDir, fmt.Sprintf("cashlinks_%d.svg", stamp))
	if err := ioutil.WriteFile(report.SheetPath, sheet.Bytes(), 0644); err != nil {
		return report, errors.Wrap(err, "write sheet")
	}
	logger.Info("sheet written", "path", report.SheetPath)

	submitErr := is.submit(ctx, logger, report, plan)

	report.ManifestPath = filepath.Join(is.conf.OutputDir, fmt.Sprintf("cashlinks_%d.csv", stamp))
	if err := writeManifest(report); err != nil {
		return report, errors.Append(submitErr, errors.Wrap(err, "write manifest"))
	}
	if submitErr != nil {
		logger.Error("batch aborted", "funded", report.Funded(), "count", len(report.Entries), "err", submitErr)
		return report, submitErr
	}
	logger.Info("charging cashlinks", "funded", report.Funded(), "manifest", report.ManifestPath)
	return report, nil
}

// fund blocks until the wallet holds the total amount required by the
// batch.
func (is *Issuer) fund(ctx context.Context, logger log.Logger, plan Plan) error {
	ticker := plan.Total.Ticker
	account := client.NewAccount(is.ledger, client.Address(is.wallet), ticker)

	balance, err := account.Balance(ctx)
	if err != nil {
		return funding.QueryError(err, "initial balance")
	}
	if balance < plan.TotalUnits {
		missing := client.UnitsToCoin(plan.TotalUnits-balance, ticker)
		req, err := FundingRequest(is.conf.WalletURL, is.conf.AddressPrefix, account.Address(), missing)
		if err != nil {
			return errors.Wrap(err, "funding request")
		}
		logger.Info("fund the wallet", "missing", missing.String(), "request", req)
	}

	progress := func(p funding.Progress) {
		if p.Remaining == 0 {
			return
		}
		logger.Info("funds received",
			"received", client.UnitsToCoin(p.Received, ticker).String(),
			"remaining", client.UnitsToCoin(p.Remaining, ticker).String())
	}
	got, err := funding.NewWaiter(account, logger, progress).EnsureFunded(ctx, plan.TotalUnits)
	if err != nil {
		return errors.Wrap(err, "funding")
	}
	logger.Info("wallet funded", "balance", client.UnitsToCoin(got, ticker).String())
	return nil
}

// submit sends one transfer per report entry, in nonce order. It stops at
// the first failure.
func (is *Issuer) submit(ctx context.Context, logger log.Logger, report *Report, plan Plan) error {
	chainID, err := is.ledger.ChainID()
	if err != nil {
		return errors.Wrap(err, "chain id")
	}
	limit := rate.Inf
	if is.conf.SubmitRate > 0 {
		limit = rate.Limit(is.conf.SubmitRate)
	}
	limiter := rate.NewLimiter(limit, 1)

	src := client.Address(is.wallet)
	nonce := client.NewNonce(is.ledger, src)
	memo := "cashlink " + report.BatchID
	for i := range report.Entries {
		e := &report.Entries[i]
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "cashlink #%d", i)
		}
		n, err := nonce.Next()
		if err != nil {
			return errors.Wrapf(err, "cashlink #%d: nonce", i)
		}
		tx := client.BuildSendTx(src, e.Address, is.conf.Value, plan.Fee, memo)
		if err := client.SignTx(tx, is.wallet, chainID, n); err != nil {
			e.Err = err
			return errors.Wrapf(err, "cashlink #%d", i)
		}
		id, err := is.ledger.SubmitTx(tx)
		if err != nil {
			e.Err = err
			return errors.Wrapf(err, "cashlink #%d", i)
		}
		e.TxID = id
		e.Err = nil
		logger.Debug("transfer submitted", "index", i, "address", e.HumanAddress, "tx", id.String())
	}
	return nil
}

func writeManifest(r *Report) error {
	fd, err := os.OpenFile(r.ManifestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := r.WriteCSV(fd); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}
