package config

import "github.com/spf13/viper"

const (
	mongoURIVar      = "MONGO_URI"
	mongoDatabaseVar = "MONGO_DATABASE"
	redisURLVar      = "REDIS_URL"
)

type StoreConfig interface {
	GetMongoURI() string
	GetMongoDatabase() string
	GetRedisURL() string
}

type Stores struct {
	v *viper.Viper
}

var _ StoreConfig = Stores{}

func (s Stores) GetMongoURI() string {
	return s.v.GetString(mongoURIVar)
}

func (s Stores) GetMongoDatabase() string {
	return s.v.GetString(mongoDatabaseVar)
}

func (s Stores) GetRedisURL() string {
	return s.v.GetString(redisURLVar)
}
