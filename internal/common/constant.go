package common

// Provider tags stored in users.provider. The value is informational only:
// capabilities are decided by the presence of a password hash or provider id.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// DefaultProjectName is used when a project is created without a name.
const DefaultProjectName = "Untitled Project"

// VerificationTokenSize is the number of random bytes behind an email
// verification token (hex encoded on the wire).
const VerificationTokenSize = 32
