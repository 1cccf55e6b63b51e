// Package security は外部入力と外部送信に対する防御機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// MaxWebhookURLLength はWebhook URLの最大長。
const MaxWebhookURLLength = 2048

// WebhookGuard はユーザー指定のWebhook URLに対するSSRF防止機能のインターフェース。
// 設定保存時の事前検証と、配信時のHTTPクライアントの両方で使用する。
type WebhookGuard interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// 接続先のIPアドレスはDNS解決後にダイヤラーで検証される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLを静的に検証し、送信先として不適切な場合はエラーを返す。
	ValidateURL(rawURL string) error
}

// blockedNetworks は送信先として拒否するネットワーク範囲。
var blockedNetworks []*net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10", // CGNAT
		"127.0.0.0/8",
		"169.254.0.0/16", // メタデータIPを含む
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, network)
	}
}

var blockedHostSuffixes = []string{
	"localhost",
	".local",
	".internal",
}

type webhookGuard struct{}

// NewWebhookGuard はWebhookGuardの新しいインスタンスを生成する。
func NewWebhookGuard() *webhookGuard {
	return &webhookGuard{}
}

// NewSafeClient はhttpsの443番ポートのみに接続できるHTTPクライアントを生成する。
// プライベート、ループバック、リンクローカルの各アドレスへの接続はsafeurlが拒否する。
func (g *webhookGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はWebhook URLを検証する。DNS解決は行わない。
// DNS再バインディングは配信時のNewSafeClient側で防ぐ。
func (g *webhookGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	if len(rawURL) > MaxWebhookURLLength {
		return fmt.Errorf("URL too long: %d > %d", len(rawURL), MaxWebhookURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %q (https only)", parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("credentials in URL are not allowed")
	}
	if port := parsed.Port(); port != "" && port != "443" {
		return fmt.Errorf("disallowed port: %s", port)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	if ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, suffix := range blockedHostSuffixes {
		if lower == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
