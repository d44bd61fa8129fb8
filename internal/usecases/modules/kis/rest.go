package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	trIDFluctuationRank = "FHPST01700000"
	trIDVolumeRank      = "FHPST01710000"
	trIDCurrentPrice    = "FHKST01010100"

	pathFluctuationRank = "/uapi/domestic-stock/v1/ranking/fluctuation"
	pathVolumeRank      = "/uapi/domestic-stock/v1/quotations/volume-rank"
	pathCurrentPrice    = "/uapi/domestic-stock/v1/quotations/inquire-price"
)

// APIError is a non-zero rt_cd in an otherwise well-formed response.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis: api error rt_cd=%s: %s", e.Code, e.Message)
}

// RankItem is one row from a ranking endpoint, keyed by the upstream
// field names.
type RankItem map[string]string

// PriceDetail is the inquire-price output block.
type PriceDetail struct {
	Code       string `json:"stck_shrn_iscd"`
	Price      string `json:"stck_prpr"`
	Change     string `json:"prdy_vrss"`
	ChangeSign string `json:"prdy_vrss_sign"`
	ChangeRate string `json:"prdy_ctrt"`
	Open       string `json:"stck_oprc"`
	High       string `json:"stck_hgpr"`
	Low        string `json:"stck_lwpr"`
	AccVolume  string `json:"acml_vol"`
	MarketCap  string `json:"hts_avls"`
	Name       string `json:"bstp_kor_isnm"`
}

type RestClientConfig struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	Auth      *Auth
}

// RestClient calls the upstream quotation REST endpoints with the
// cached access token.
type RestClient struct {
	baseURL   string
	appKey    string
	appSecret string
	auth      *Auth
	httpc     *http.Client
}

func NewRestClient(cfg RestClientConfig) *RestClient {
	return &RestClient{
		baseURL:   cfg.BaseURL,
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		auth:      cfg.Auth,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

// FluctuationRank returns the top movers by change rate.
func (c *RestClient) FluctuationRank(ctx context.Context) ([]RankItem, error) {
	params := url.Values{
		"fid_rsfl_rate2":         {""},
		"fid_cond_mrkt_div_code": {"J"},
		"fid_cond_scr_div_code":  {"20170"},
		"fid_input_iscd":         {"0000"},
		"fid_rank_sort_cls_code": {"0"},
		"fid_input_cnt_1":        {"0"},
		"fid_prc_cls_code":       {"1"},
		"fid_input_price_1":      {""},
		"fid_input_price_2":      {""},
		"fid_vol_cnt":            {""},
		"fid_trgt_cls_code":      {"0"},
		"fid_trgt_exls_cls_code": {"0"},
		"fid_div_cls_code":       {"0"},
		"fid_rsfl_rate1":         {""},
	}
	var output []RankItem
	if err := c.get(ctx, trIDFluctuationRank, pathFluctuationRank, params, &output); err != nil {
		return nil, err
	}
	return output, nil
}

// VolumeRank returns the top instruments by traded volume. The upstream
// responds with upper-cased field names on this endpoint only; they are
// lower-cased here so every ranking payload shares one key style.
func (c *RestClient) VolumeRank(ctx context.Context) ([]RankItem, error) {
	params := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_COND_SCR_DIV_CODE":  {"20171"},
		"FID_INPUT_ISCD":         {"0000"},
		"FID_DIV_CLS_CODE":       {"0"},
		"FID_BLNG_CLS_CODE":      {"0"},
		"FID_TRGT_CLS_CODE":      {"111111111"},
		"FID_TRGT_EXLS_CLS_CODE": {"0000000000"},
		"FID_INPUT_PRICE_1":      {""},
		"FID_INPUT_PRICE_2":      {""},
		"FID_VOL_CNT":            {""},
		"FID_INPUT_DATE_1":       {""},
	}
	var output []RankItem
	if err := c.get(ctx, trIDVolumeRank, pathVolumeRank, params, &output); err != nil {
		return nil, err
	}
	lowered := make([]RankItem, len(output))
	for i, item := range output {
		row := make(RankItem, len(item))
		for k, v := range item {
			row[strings.ToLower(k)] = v
		}
		lowered[i] = row
	}
	return lowered, nil
}

// CurrentPrice returns the quote snapshot for one instrument.
func (c *RestClient) CurrentPrice(ctx context.Context, code string) (*PriceDetail, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"fid_cond_mrkt_div_code": {"J"},
		"fid_input_iscd":         {normalized},
	}
	detail := &PriceDetail{}
	if err = c.get(ctx, trIDCurrentPrice, pathCurrentPrice, params, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *RestClient) get(ctx context.Context, trID, path string, params url.Values, output any) error {
	cred, err := c.auth.AccessToken(ctx, false)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("tr_cont", "")
	req.Header.Set("custtype", "P")
	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("kis: request %s: %w", path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("kis: read %s response: %w", path, err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("kis: %s returned %d", path, res.StatusCode)
	}
	var envelope struct {
		RtCd   string          `json:"rt_cd"`
		Msg1   string          `json:"msg1"`
		Output json.RawMessage `json:"output"`
	}
	if err = json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("kis: decode %s response: %w", path, err)
	}
	if envelope.RtCd != "0" {
		return &APIError{Code: envelope.RtCd, Message: envelope.Msg1}
	}
	if len(envelope.Output) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Output, output)
}
