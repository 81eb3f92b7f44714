package core

type Config struct {
	// JWT configuration
	JWTSecret            string `yaml:"jwt_secret"`             // Secret key for signing JWT tokens
	AccessTokenDuration  int    `yaml:"access_token_duration"`  // Access token lifetime in seconds
	RefreshTokenDuration int    `yaml:"refresh_token_duration"` // Refresh token lifetime in seconds

	// Password hashing
	BcryptCost int `yaml:"bcrypt_cost"` // 0 means the default cost

	// Encryption key for cached provider tokens (32 bytes, AES-256)
	EncryptionKey string `yaml:"encryption_key"`

	// FrontendURL is where OAuth callbacks redirect the browser,
	// and the origin allowed by CORS.
	FrontendURL string `yaml:"frontend_url"`
}
