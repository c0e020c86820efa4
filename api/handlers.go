package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/resolver"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/vesting"
)

// Errors returned to client requests.
var (
	ErrMissingToken    = errors.New("missing token context - set header X-Token-Id or query ?token=<id>")
	ErrMissingWallet   = errors.New("missing query: ?wallet=<address>")
	ErrMissingContract = errors.New("missing query: ?contract=<address>")
	ErrBadForce        = errors.New("invalid query: force must be a boolean")
	ErrBadRequest      = errors.New("bad request")
)

const (
	sourceCache      = "cache"
	sourceBlockchain = "blockchain"
)

type ctxKey int

const requestIDKey ctxKey = 0

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Body    interface{} `json:"body,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// VestingEntry is one contract of a wallet vesting reply.
type VestingEntry struct {
	ContractName    string                       `json:"contractName"`
	ContractAddress string                       `json:"contractAddress"`
	TokenAddress    string                       `json:"tokenAddress"`
	TokenSymbol     string                       `json:"tokenSymbol"`
	TokenDecimals   uint8                        `json:"tokenDecimals"`
	Total           decimal.Decimal              `json:"total"`
	Vested          decimal.Decimal              `json:"vested"`
	Claimable       decimal.Decimal              `json:"claimable"`
	Remaining       decimal.Decimal              `json:"remaining"`
	Released        decimal.Decimal              `json:"released"`
	Start           *time.Time                   `json:"start,omitempty"`
	End             *time.Time                   `json:"end,omitempty"`
	NoVestings      bool                         `json:"noVestings"`
	Source          string                       `json:"source"`
	Schedules       []vesting.NormalizedSchedule `json:"schedules"`
}

type Totals struct {
	Total     decimal.Decimal `json:"total"`
	Vested    decimal.Decimal `json:"vested"`
	Claimable decimal.Decimal `json:"claimable"`
	Remaining decimal.Decimal `json:"remaining"`
	Released  decimal.Decimal `json:"released"`
}

// VestingInfo is the reply of GET /vesting-info.
type VestingInfo struct {
	Success          bool                      `json:"success"`
	Wallet           string                    `json:"wallet"`
	Network          string                    `json:"network"`
	VestingSchedules []VestingEntry            `json:"vestingSchedules"`
	Totals           Totals                    `json:"totals"`
	FromCache        bool                      `json:"fromCache"`
	Outcomes         []vesting.ContractOutcome `json:"outcomes"`
	DebugLog         []string                  `json:"debugLog"`
}

// ABIUpload is the body of POST /abi. ABI may be sent either as a JSON
// array or as a string holding one.
type ABIUpload struct {
	ContractAddress string          `json:"contractAddress"`
	Network         string          `json:"network"`
	ABI             json.RawMessage `json:"abi"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func sourceOf(fromCache bool) string {
	if fromCache {
		return sourceCache
	}
	return sourceBlockchain
}

func entryOf(cv vesting.ContractVesting) VestingEntry {
	agg := cv.Aggregate
	schedules := agg.Schedules
	if schedules == nil {
		schedules = []vesting.NormalizedSchedule{}
	}
	return VestingEntry{
		ContractName:    cv.Contract.Name,
		ContractAddress: cv.Contract.Address,
		TokenAddress:    cv.Token.Address,
		TokenSymbol:     cv.Token.Symbol,
		TokenDecimals:   cv.Token.Decimals,
		Total:           agg.Total,
		Vested:          agg.Vested(),
		Claimable:       agg.Releasable,
		Remaining:       agg.Remaining,
		Released:        agg.Released,
		Start:           timePtr(agg.Start()),
		End:             timePtr(agg.End()),
		NoVestings:      agg.NoVestings,
		Source:          sourceOf(cv.FromCache),
		Schedules:       schedules,
	}
}

// NewVestingInfo turns a wallet summary into its wire form. Contracts whose
// beneficiary could not be resolved only appear in the outcomes.
func NewVestingInfo(s vesting.WalletVestingSummary) VestingInfo {
	info := VestingInfo{
		Success:          true,
		Wallet:           s.Wallet,
		Network:          s.Network,
		VestingSchedules: make([]VestingEntry, 0, len(s.Contracts)),
		Totals: Totals{
			Total:     s.Total,
			Vested:    s.Released.Add(s.Releasable),
			Claimable: s.Releasable,
			Remaining: s.Remaining,
			Released:  s.Released,
		},
		FromCache: s.FromCache,
		Outcomes:  s.Outcomes,
		DebugLog:  s.DebugLog,
	}
	for _, cv := range s.Contracts {
		if cv.Aggregate.Failed() {
			continue
		}
		info.VestingSchedules = append(info.VestingSchedules, entryOf(cv))
	}
	return info
}

// statusOf maps engine errors to http status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, resolver.ErrNoTokenContext):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingWallet),
		errors.Is(err, ErrMissingContract),
		errors.Is(err, ErrBadForce),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, resolver.ErrInvalidWallet),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, abiresolver.ErrInvalidABI):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logger(r *http.Request) logrus.FieldLogger {
	l := s.l.WithFields(logrus.Fields{
		"remote": r.RemoteAddr,
		"uri":    r.RequestURI,
	})
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		l = l.WithField("request_id", id)
	}
	return l
}

// requestID tags every request with an id, reusing the one the client sent.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		rw.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// reply writes v as json, or an error envelope when err is set.
func (s *Server) reply(rw http.ResponseWriter, r *http.Request, started time.Time, v interface{}, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
		v = Response{Error: err.Error()}
	}
	l := s.logger(r).WithFields(logrus.Fields{
		"status":   status,
		"duration": time.Since(started).String(),
	})
	if status >= http.StatusInternalServerError {
		l.WithError(err).Error("httpreq failed")
	} else if err != nil {
		l.WithError(err).Info("httpreq rejected")
	} else {
		l.Info("httpreq")
	}
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// tokenContext resolves the tenant of a request.
func (s *Server) tokenContext(r *http.Request) (vesting.TokenContext, error) {
	id := strings.TrimSpace(r.Header.Get(TokenHeader))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if id == "" {
		return vesting.TokenContext{}, ErrMissingToken
	}
	tc, err := s.tokens.GetToken(r.Context(), id)
	if err != nil {
		return vesting.TokenContext{}, fmt.Errorf("token %s: %w", id, err)
	}
	return tc, nil
}

func forceOf(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("force")
	if raw == "" {
		return false, nil
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ErrBadForce
	}
	return force, nil
}

// beneficiariesOf accepts repeated ?beneficiary= params as well as comma
// separated lists.
func beneficiariesOf(r *http.Request) []string {
	result := []string{}
	for _, v := range r.URL.Query()["beneficiary"] {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				result = append(result, b)
			}
		}
	}
	return result
}

func (s *Server) healthHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(Response{Success: true, Body: "ok"})
}

// vestingInfoHandler replies the vesting of a wallet across every active
// vesting contract of the token.
func (s *Server) vestingInfoHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res VestingInfo

	started := time.Now()

	defer func() {
		s.reply(rw, r, started, res, err)
	}()

	tc, err := s.tokenContext(r)
	if err != nil {
		return
	}
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		err = ErrMissingWallet
		return
	}
	force, err := forceOf(r)
	if err != nil {
		return
	}
	summary, err := s.vestings.ResolveWalletVesting(r.Context(), tc, wallet, r.URL.Query().Get("network"), force)
	if err != nil {
		return
	}
	res = NewVestingInfo(summary)
}

// refreshHandler refetches one beneficiary of one contract from chain.
func (s *Server) refreshHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	started := time.Now()

	defer func() {
		s.reply(rw, r, started, res, err)
	}()

	tc, err := s.tokenContext(r)
	if err != nil {
		return
	}
	q := r.URL.Query()
	wallet, contract := q.Get("wallet"), q.Get("contract")
	if wallet == "" {
		err = ErrMissingWallet
		return
	}
	if contract == "" {
		err = ErrMissingContract
		return
	}
	cv, err := s.vestings.RefreshBeneficiary(r.Context(), tc, contract, wallet, q.Get("network"))
	if err != nil {
		return
	}
	res = Response{Success: true, Body: entryOf(cv)}
}

// vestingSummaryHandler replies the vesting of many beneficiaries of one
// contract.
func (s *Server) vestingSummaryHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	started := time.Now()

	defer func() {
		s.reply(rw, r, started, res, err)
	}()

	tc, err := s.tokenContext(r)
	if err != nil {
		return
	}
	contract := r.URL.Query().Get("contract")
	if contract == "" {
		err = ErrMissingContract
		return
	}
	beneficiaries := beneficiariesOf(r)
	if len(beneficiaries) == 0 {
		err = fmt.Errorf("%w: missing query: ?beneficiary=<address>", ErrBadRequest)
		return
	}
	force, err := forceOf(r)
	if err != nil {
		return
	}
	summary, err := s.vestings.ResolveContractBeneficiaries(r.Context(), tc, contract, r.URL.Query().Get("network"), beneficiaries, force)
	if err != nil {
		return
	}
	res = Response{Success: true, Body: summary}
}

// uploadABIHandler stores a user supplied ABI for a contract of the token.
func (s *Server) uploadABIHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	started := time.Now()

	defer func() {
		s.reply(rw, r, started, res, err)
	}()

	tc, err := s.tokenContext(r)
	if err != nil {
		return
	}
	var req ABIUpload
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = fmt.Errorf("%w: %v", ErrBadRequest, err)
		return
	}
	if !common.IsAddress(req.ContractAddress) || len(req.ABI) == 0 {
		err = fmt.Errorf("%w: contractAddress and abi are required", ErrBadRequest)
		return
	}
	abiText := string(req.ABI)
	var quoted string
	if json.Unmarshal(req.ABI, &quoted) == nil {
		abiText = quoted
	}
	network := req.Network
	if network == "" {
		network = tc.Network
	}
	saved, err := s.abis.Upload(r.Context(), vesting.ContractAbi{
		TokenID:         tc.TokenID,
		ContractAddress: req.ContractAddress,
		Network:         network,
		ABI:             abiText,
	})
	if err != nil {
		return
	}
	res = Response{Success: true, Body: saved}
}
