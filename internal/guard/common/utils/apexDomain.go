package utils

import "golang.org/x/net/publicsuffix"

// GetApexDomain returns the registrable domain (eTLD+1) for name, or the
// canonical name itself when it has no registrable part (e.g. "localhost").
func GetApexDomain(name string) string {
	name = CanonicalDomain(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		apexDomain = name
	}
	return apexDomain
}
