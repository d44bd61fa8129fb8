package config

type InfraConfig struct {
	Database Database
	Server   Server
	KIS      KIS
}

type Database struct {
	Host    string
	Port    string
	User    string
	Pass    string
	Name    string
	PoolMax int
}

type Server struct {
	SRVPort string
}

type KIS struct {
	AppKey    string
	AppSecret string
	RestURL   string
	WSURL     string

	TokenCachePath string
}
