package config

import "os"

// CompanyProfile is the billing-from identity printed on every invoice
// document. It is configuration, not data: the renderer reads it, the engine
// never does.
type CompanyProfile struct {
	Name    string
	Address string
	City    string
	Gstin   string
}

func GetCompanyProfile() CompanyProfile {
	return CompanyProfile{
		Name:    envOr("COMPANY_NAME", "Gananath Enterprises"),
		Address: envOr("COMPANY_ADDRESS", "New Colony, Rayagada"),
		City:    envOr("COMPANY_CITY", "Odisha, 765001"),
		Gstin:   envOr("COMPANY_GSTIN", "XXX1933884"),
	}
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
