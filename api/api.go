// Package api serves the vesting engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/resolver"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/vesting"
)

const (
	TokenHeader     = "X-Token-Id"
	RequestIDHeader = "X-Request-Id"

	defaultTimeout = 15 * time.Second
)

type VestingService interface {
	ResolveWalletVesting(ctx context.Context, tc vesting.TokenContext, wallet, network string, force bool) (vesting.WalletVestingSummary, error)
	RefreshBeneficiary(ctx context.Context, tc vesting.TokenContext, contractAddress, beneficiary, network string) (vesting.ContractVesting, error)
	ResolveContractBeneficiaries(ctx context.Context, tc vesting.TokenContext, contractAddress, network string, beneficiaries []string, force bool) (resolver.ContractSummary, error)
}

type ABIUploader interface {
	Upload(ctx context.Context, a vesting.ContractAbi) (vesting.ContractAbi, error)
}

type Server struct {
	vestings VestingService
	abis     ABIUploader
	tokens   store.TokenStore
	gatherer prometheus.Gatherer
	l        logrus.FieldLogger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	s *http.Server
}

func New(vestings VestingService, abis ABIUploader, tokens store.TokenStore, gatherer prometheus.Gatherer, l logrus.FieldLogger) *Server {
	return &Server{
		vestings:     vestings,
		abis:         abis,
		tokens:       tokens,
		gatherer:     gatherer,
		l:            l,
		ReadTimeout:  defaultTimeout,
		WriteTimeout: defaultTimeout,
	}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/vesting-info", s.vestingInfoHandler).Methods(http.MethodGet)       // wallet vesting across contracts
	r.HandleFunc("/vesting-info/refresh", s.refreshHandler).Methods(http.MethodPost)  // refresh one beneficiary of one contract
	r.HandleFunc("/vesting-summary", s.vestingSummaryHandler).Methods(http.MethodGet) // many beneficiaries of one contract
	r.HandleFunc("/abi", s.uploadABIHandler).Methods(http.MethodPost)                 // upload a contract abi
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Use(s.requestID)
	return r
}

// ListenAndServe serves the API on addr until ctx is done, then shuts the
// server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.s = &http.Server{
		Handler:      s.Router(),
		Addr:         addr,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.s.ListenAndServe()
	}()
	s.l.WithField("addr", addr).Info("listening to API http requests")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
