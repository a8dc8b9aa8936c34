package solana

import (
	"net/url"
	"strings"
)

// EndpointLabel extracts a short identifier from an RPC URL for metrics labeling.
// The query string (which carries provider API keys) never appears in the label.
//
//	"https://api.mainnet-beta.solana.com"          -> "mainnet"
//	"https://mainnet.helius-rpc.com/?api-key=..."  -> "helius"
//	"https://example.quiknode.pro/abc/"            -> "quiknode"
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "unknown"
	}
	host := parsed.Hostname()

	for _, provider := range []string{"helius", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	if strings.Contains(host, "quiknode") || strings.Contains(host, "quicknode") {
		return "quiknode"
	}

	for _, cluster := range []string{"mainnet", "devnet", "testnet"} {
		if strings.Contains(host, cluster) {
			return cluster
		}
	}
	if host == "" {
		return "unknown"
	}
	return host
}
