package webeid

// AuthToken is the client-submitted payload (§6 "Auth token wire
// format"). Construct one with json.Unmarshal; it is read-only for the
// rest of the pipeline's lifetime.
type AuthToken struct {
	UnverifiedCertificate string `json:"unverifiedCertificate"`
	Algorithm             string `json:"algorithm"`
	Signature             string `json:"signature"`
	// Format is carried through but never interpreted beyond its
	// presence (§6: "The core ignores format beyond presence").
	Format string `json:"format"`
}
