package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrConfigNotFound is returned when an explicitly requested file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidLogLevel is returned for levels other than debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat is returned for formats other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrUnknownStorageDriver is returned for drivers other than file, sqlite or postgres.
	ErrUnknownStorageDriver = errors.New("unknown storage driver")

	// ErrMissingStoragePath is returned when the file driver has no path.
	ErrMissingStoragePath = errors.New("storage path is required for the file driver")

	// ErrMissingDSN is returned when an SQL driver has no DSN.
	ErrMissingDSN = errors.New("storage dsn is required for sql drivers")

	// ErrInvalidDelay is returned when the post-fetch delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid harvest delay: must be non-negative")

	// ErrInvalidInterval is returned when the cycle interval is not positive.
	ErrInvalidInterval = errors.New("invalid harvest interval: must be positive")

	// ErrInvalidTimeout is returned when a request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxKeys is returned when maxKeysPerCycle is negative.
	ErrInvalidMaxKeys = errors.New("invalid maxKeysPerCycle: must be non-negative")

	// ErrNoSources is returned when no listing source is configured.
	ErrNoSources = errors.New("no listing sources configured")

	// ErrUnknownStrategy is returned for a source with an unregistered strategy.
	ErrUnknownStrategy = errors.New("unknown listing strategy")

	// ErrMissingSearchTerms is returned for a search source without terms.
	ErrMissingSearchTerms = errors.New("search strategy requires terms")

	// ErrInvalidRateLimit is returned when the LLM is enabled with a non-positive rate.
	ErrInvalidRateLimit = errors.New("invalid llm requestsPerMinute: must be positive")

	// ErrInvalidMaxRetries is returned when proxy rotation allows no attempt.
	ErrInvalidMaxRetries = errors.New("invalid proxy maxRetries: must be at least 1")

	// ErrNoProxies is returned when proxies are enabled but none are listed.
	ErrNoProxies = errors.New("proxy rotation enabled without proxies or proxy file")

	// ErrConflictingTransports is returned when both proxies and Tor are enabled.
	ErrConflictingTransports = errors.New("proxy rotation and tor cannot be used together")

	// ErrIncompleteTelegram is returned when only one of bot token and chat id is set.
	ErrIncompleteTelegram = errors.New("telegram notifications need both botToken and chatId")
)
