package common

// BearerScheme is the Authorization header scheme carrying access tokens.
const BearerScheme = "Bearer"

// VerificationTokenType is the discriminator carried by email verification
// tokens. Access tokens carry no type.
const VerificationTokenType = "verification"
