// Package zpay implements the ZPay (Alipay-protocol) gateway integration:
// parameter canonicalization, MD5 signing, submit-URL construction and
// notification verification. The canonicalization rule is dictated by the
// gateway's integration contract.
package zpay

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"
)

// TradeSuccess is the gateway's terminal success status for a notification.
const TradeSuccess = "TRADE_SUCCESS"

type Client struct {
	PID        string
	Key        string
	GatewayURL string
}

func NewClient(pid, key, gatewayURL string) *Client {
	return &Client{PID: pid, Key: key, GatewayURL: gatewayURL}
}

// OrderParams describes one outbound order submission.
type OrderParams struct {
	Name       string
	Money      string
	OutTradeNo string
	NotifyURL  string
	ReturnURL  string
	Type       string // "alipay" or "wxpay"
}

// canonicalize drops empty values plus the sign and sign_type fields, sorts
// the remaining keys bytewise ascending and joins them as k=v pairs with "&".
func canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// Sign computes the MD5 hex digest of the canonicalized parameters with the
// shared secret appended.
func (c *Client) Sign(params map[string]string) string {
	sum := md5.Sum([]byte(canonicalize(params) + c.Key))
	return hex.EncodeToString(sum[:])
}

// SubmitURL builds the signed redirect URL for the gateway's submit endpoint.
func (c *Client) SubmitURL(p OrderParams) string {
	params := map[string]string{
		"pid":          c.PID,
		"name":         p.Name,
		"money":        p.Money,
		"out_trade_no": p.OutTradeNo,
		"notify_url":   p.NotifyURL,
		"return_url":   p.ReturnURL,
		"type":         p.Type,
		"sign_type":    "MD5",
	}
	params["sign"] = c.Sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return c.GatewayURL + "?" + values.Encode()
}

// VerifyNotify recomputes the signature over the delivered parameters and
// compares it with the supplied one. It must be called before any state
// mutation on the notification path.
func (c *Client) VerifyNotify(params map[string]string) bool {
	received := params["sign"]
	if received == "" {
		return false
	}
	return c.Sign(params) == received
}

// GenerateOrderNo produces the gateway-facing order reference: a 14-digit
// UTC timestamp followed by three random digits, matching the format the
// gateway displays in its merchant console.
func GenerateOrderNo() string {
	return time.Now().UTC().Format("20060102150405") + fmt.Sprintf("%03d", rand.Intn(1000))
}
