// Package config package config
package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/chindada/leopard/pkg/log"
	"github.com/spf13/viper"
	"github.com/yunseong-dev/madang/internal/usecases/modules/pgclient"
)

// Config -.
type Config struct {
	InfraConfig

	vp     *viper.Viper
	logger *log.Log

	dbClient pgclient.PGClient

	rootPath string
}

var (
	singleton *Config
	once      sync.Once
)

func newConfig() *Config {
	logger := log.Get()
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	return &Config{
		logger:   logger,
		vp:       viper.New(),
		rootPath: filepath.Join(filepath.Dir(ex), ".."),
	}
}

func (c *Config) loadEnv() {
	c.vp.SetDefault("DB_HOST", "127.0.0.1")
	c.vp.SetDefault("DB_PORT", "5432")
	c.vp.SetDefault("DB_USER", "postgres")
	c.vp.SetDefault("DB_PASS", "password")
	c.vp.SetDefault("DB_NAME", "madang")
	c.vp.SetDefault("DB_POOL_MAX", 30)
	c.vp.SetDefault("SRV_PORT", "23456")
	c.vp.SetDefault("KIS_APP_KEY", "")
	c.vp.SetDefault("KIS_APP_SECRET", "")
	c.vp.SetDefault("KIS_REST_URL", "https://openapi.koreainvestment.com:9443")
	c.vp.SetDefault("KIS_WS_URL", "ws://ops.koreainvestment.com:21000")
	c.vp.SetDefault("TOKEN_CACHE_PATH", filepath.Join(c.rootPath, "data", "token.json"))
	c.vp.AutomaticEnv()
	c.InfraConfig = InfraConfig{
		Database: Database{
			Host:    c.vp.GetString("DB_HOST"),
			Port:    c.vp.GetString("DB_PORT"),
			User:    c.vp.GetString("DB_USER"),
			Pass:    c.vp.GetString("DB_PASS"),
			Name:    c.vp.GetString("DB_NAME"),
			PoolMax: c.vp.GetInt("DB_POOL_MAX"),
		},
		Server: Server{
			SRVPort: c.vp.GetString("SRV_PORT"),
		},
		KIS: KIS{
			AppKey:         c.vp.GetString("KIS_APP_KEY"),
			AppSecret:      c.vp.GetString("KIS_APP_SECRET"),
			RestURL:        c.vp.GetString("KIS_REST_URL"),
			WSURL:          c.vp.GetString("KIS_WS_URL"),
			TokenCachePath: c.vp.GetString("TOKEN_CACHE_PATH"),
		},
	}
	// Missing credentials keep the server up so the config can be fixed
	// without a crash loop, but nothing upstream will work.
	if c.KIS.AppKey == "" || c.KIS.AppSecret == "" {
		c.logger.Error("KIS_APP_KEY or KIS_APP_SECRET is not set, upstream feed will keep retrying")
	}
}

func Init() {
	once.Do(func() {
		c := newConfig()
		c.loadEnv()
		c.setPostgresPool()
		singleton = c
	})
}

func Get() *Config {
	if singleton == nil {
		once.Do(Init)
		return Get()
	}
	return singleton
}

func (c *Config) setPostgresPool() {
	path := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		c.Database.User, c.Database.Pass,
		net.JoinHostPort(c.Database.Host, c.Database.Port), c.Database.Name)
	c.logger.Infof("database host: %s", c.Database.Host)
	pg, err := pgclient.New(
		context.Background(),
		path,
		pgclient.MaxPoolSize(c.Database.PoolMax),
		pgclient.AddLogger(c.logger),
	)
	if err != nil {
		c.logger.Fatal(err)
	}
	c.dbClient = pg
}

func (c *Config) GetPostgresPool() pgclient.PGClient {
	if c.dbClient == nil {
		c.logger.Fatal("postgres not connected")
	}
	return c.dbClient
}

func (c *Config) CloseDB() {
	if c.dbClient != nil {
		c.dbClient.Close()
	}
}
