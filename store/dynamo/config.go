package dynamo

import "time"

// Config holds configuration for a Conn.
type Config struct {
	// TablePrefix is prepended to every collection name to form the table
	// name. Default: "" (the collection name is the table name)
	TablePrefix string

	// KeyAttribute is the string partition key of every table. It holds the
	// document id and is stripped from document data on read.
	// Default: "id"
	KeyAttribute string

	// OperationTimeout bounds each DynamoDB call. Zero disables the bound.
	// Default: 5s
	OperationTimeout time.Duration

	// ConsistentRead enables strongly consistent GetItem and Scan.
	// Default: true
	ConsistentRead bool
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig() Config {
	return Config{
		KeyAttribute:     "id",
		OperationTimeout: 5 * time.Second,
		ConsistentRead:   true,
	}
}

// validate fills in missing values.
func (c *Config) validate() {
	if c.KeyAttribute == "" {
		c.KeyAttribute = "id"
	}
	if c.OperationTimeout < 0 {
		c.OperationTimeout = 0
	}
}
