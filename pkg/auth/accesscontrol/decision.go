package accesscontrol

// Reason classifies why authorization was denied. Values are stable and
// suitable for logging and HTTP status mapping.
type Reason string

const (
	ReasonUnverified               Reason = "unverified"
	ReasonExpired                  Reason = "expired"
	ReasonNotYetValid              Reason = "not_yet_valid"
	ReasonMissingClaim             Reason = "missing_claim"
	ReasonFamilyMismatch           Reason = "family_mismatch"
	ReasonInsufficientCapabilities Reason = "insufficient_capabilities"
)

// Decision is the outcome of evaluating a token against a set of
// requirements. Denials are not errors; they are ordinary outcomes the
// caller maps to a response.
type Decision struct {
	// Granted is true when every requirement passed.
	Granted bool

	// Reason is set on denial.
	Reason Reason

	// Claim names the claim a denial relates to, when one does.
	Claim string

	// Missing lists the required capabilities the token lacks, in
	// requirement order, when Reason is insufficient_capabilities.
	Missing []string
}

func grant() Decision {
	return Decision{Granted: true}
}

func deny(reason Reason, claim string) Decision {
	return Decision{Reason: reason, Claim: claim}
}

func denyMissing(claim string, missing []string) Decision {
	return Decision{Reason: ReasonInsufficientCapabilities, Claim: claim, Missing: missing}
}
