package config

const (
	EnvPrefix = "HOTPOS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "HOTPOS_DB_DSN"
	EnvDBHost = "HOTPOS_DB_HOST"
	EnvDBUser = "HOTPOS_DB_USER"
	EnvDBName = "HOTPOS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
