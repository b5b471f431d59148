// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP/HTTPS
// ports, TLS, logging level, CORS); AppConfig carries everything
// specific to drift: the Mongo connection, token signing, live
// connection tuning, and history paging.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer token configuration
	JWTSecret string        // Signing secret (must be strong in production)
	JWTExpiry time.Duration // Lifetime of issued tokens

	// Live connection tuning
	WSSendBuffer      int   // Frames buffered per client before it is dropped
	WSBufferBytes     int   // Read/write buffer size for the upgrader
	WSMaxMessageBytes int64 // Max inbound frame size

	// Message history paging
	MessagePageLimit int64 // Hard cap on a single history page
}
