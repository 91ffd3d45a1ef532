// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"strconv"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

// validatePortList checks a comma-separated list of port tokens
// (number, service name, or "lo:hi" range) and returns the token
// count (nbdport/nbsport, spec.md §3).
func validatePortList(field string, services *ServicesDirectory) (count int, err error) {
	if field == "" {
		return 0, nil
	}
	tokens := strings.Split(field, ",")
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return 0, ferrors.New(ferrors.KindParse, "empty port token")
		}
		if err := validatePortToken(tok, services); err != nil {
			return 0, err
		}
	}
	return len(tokens), nil
}

// validatePortToken validates a single port token: a bare number, a
// service name, or a "lo:hi" range.
func validatePortToken(tok string, services *ServicesDirectory) error {
	if lo, hi, ok := strings.Cut(tok, ":"); ok {
		loN, err := parsePortNameNumber(lo, services)
		if err != nil {
			return err
		}
		hiN, err := parsePortNameNumber(hi, services)
		if err != nil {
			return err
		}
		if loN > hiN {
			return ferrors.Errorf(ferrors.KindParse, "invalid port range %q: lo > hi", tok)
		}
		return nil
	}
	_, err := parsePortNameNumber(tok, services)
	return err
}

// parsePortNameNumber resolves a single port token (number or service
// name) to its numeric value.
//
// spec.md §9 notes the source's check was written as
// `pon < 0 && pon > 65535`, an impossible conjunction that can never
// reject anything; the author clearly meant `||`. This reimplements
// it with `||`, so both ends of the range are actually validated.
func parsePortNameNumber(tok string, services *ServicesDirectory) (int, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		if n <= 0 || n > 65535 {
			return 0, ferrors.Errorf(ferrors.KindParse, "port %d out of range [1,65535]", n)
		}
		return n, nil
	}
	svc, ok := services.LookupService(tok)
	if !ok {
		return 0, ferrors.Errorf(ferrors.KindResolution, "unknown service name: %q", tok)
	}
	return svc.Port, nil
}
