package explorers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// EtherscanLikeExplorer talks to any explorer implementing the etherscan
// "module=contract" API. When ChainID is non zero it is sent as the chainid
// parameter, as the Etherscan v2 multichain API requires.
type EtherscanLikeExplorer struct {
	name    string
	client  *http.Client
	ChainID uint64

	Domain string
	APIKey string
}

func NewEtherscanLikeExplorer(name, domain, apiKey string, client *http.Client) *EtherscanLikeExplorer {
	if client == nil {
		client = http.DefaultClient
	}
	return &EtherscanLikeExplorer{
		name:   name,
		client: client,
		Domain: strings.TrimRight(domain, "/"),
		APIKey: apiKey,
	}
}

func (ee *EtherscanLikeExplorer) Name() string {
	return ee.name
}

func (ee *EtherscanLikeExplorer) WithAPIKey(key string) BlockExplorer {
	if key == "" {
		return ee
	}
	clone := *ee
	clone.APIKey = key
	return &clone
}

func (ee *EtherscanLikeExplorer) contractAPIURL(action, address string) string {
	q := url.Values{}
	if ee.ChainID != 0 {
		q.Set("chainid", strconv.FormatUint(ee.ChainID, 10))
	}
	q.Set("module", "contract")
	q.Set("action", action)
	q.Set("address", address)
	if ee.APIKey != "" {
		q.Set("apikey", ee.APIKey)
	}
	return fmt.Sprintf("%s/api?%s", ee.Domain, q.Encode())
}

func (ee *EtherscanLikeExplorer) GetABIStringAPIURL(address string) string {
	return ee.contractAPIURL("getabi", address)
}

func (ee *EtherscanLikeExplorer) GetSourceCodeAPIURL(address string) string {
	return ee.contractAPIURL("getsourcecode", address)
}

type abiresponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (ar *abiresponse) IsOK() bool {
	return ar.Status == "1"
}

type sourcecoderesponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		ContractName string `json:"ContractName"`
		ABI          string `json:"ABI"`
	} `json:"result"`
}

func (ee *EtherscanLikeExplorer) get(ctx context.Context, rawURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := ee.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", ee.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", ee.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", ee.name, resp.StatusCode)
	}
	if err = json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%s: couldn't unmarshal %q: %w", ee.name, truncate(string(body), 200), err)
	}
	return nil
}

func (ee *EtherscanLikeExplorer) GetABIString(ctx context.Context, address string) (string, error) {
	abiresp := abiresponse{}
	if err := ee.get(ctx, ee.GetABIStringAPIURL(address), &abiresp); err != nil {
		return "", err
	}
	if !abiresp.IsOK() {
		if strings.Contains(strings.ToLower(abiresp.Result), "not verified") {
			return "", fmt.Errorf("%s: %s: %w", ee.name, address, ErrNotVerified)
		}
		return "", fmt.Errorf("%s: %s: %s", ee.name, abiresp.Message, abiresp.Result)
	}
	return abiresp.Result, nil
}

// GetContractName returns the verified contract name of address.
func (ee *EtherscanLikeExplorer) GetContractName(ctx context.Context, address string) (string, error) {
	srcresp := sourcecoderesponse{}
	if err := ee.get(ctx, ee.GetSourceCodeAPIURL(address), &srcresp); err != nil {
		return "", err
	}
	if srcresp.Status != "1" || len(srcresp.Result) == 0 {
		return "", fmt.Errorf("%s: %s", ee.name, srcresp.Message)
	}
	if srcresp.Result[0].ContractName == "" {
		return "", fmt.Errorf("%s: %s: %w", ee.name, address, ErrNotVerified)
	}
	return srcresp.Result[0].ContractName, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
