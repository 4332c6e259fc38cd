package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// FARMLINK_-prefixed tags so the prefix stays empty here.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "FARMLINK_DB_DSN"
	EnvDBHost = "FARMLINK_DB_HOST"
	EnvDBUser = "FARMLINK_DB_USER"
	EnvDBName = "FARMLINK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
