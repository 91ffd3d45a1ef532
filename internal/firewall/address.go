// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"net"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

// validateAddressList checks a comma-separated list of IP/CIDR tokens
// and returns the token count (nbsource/nbdest, spec.md §3).
func validateAddressList(field string) (count int, err error) {
	if field == "" {
		return 0, nil
	}
	tokens := strings.Split(field, ",")
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return 0, ferrors.New(ferrors.KindParse, "empty address token")
		}
		if !validAddressToken(tok) {
			return 0, ferrors.Errorf(ferrors.KindParse, "invalid address: %q", tok)
		}
	}
	return len(tokens), nil
}

// validAddressToken reports whether tok is a syntactically valid IP
// or CIDR token (the Net::IP-equivalent syntax spec.md §3 requires).
func validAddressToken(tok string) bool {
	if ip, cidr, ok := strings.Cut(tok, "/"); ok {
		if net.ParseIP(ip) == nil {
			return false
		}
		_, _, err := net.ParseCIDR(tok)
		_ = cidr
		return err == nil
	}
	return net.ParseIP(tok) != nil
}
