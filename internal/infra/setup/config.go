package setup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DBConfig 是连接关系型数据库所需的参数
type DBConfig struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN 根据驱动构建连接字符串，未设置的主机、端口和库名使用本地开发默认值
func (c DBConfig) DSN() (string, error) {
	if c.User == "" {
		return "", fmt.Errorf("DB_USER environment variable not set")
	}
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	name := c.Name
	if name == "" {
		name = "wine_tasting"
	}

	switch strings.ToLower(c.Driver) {
	case "", DriverMySQL:
		port := c.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
			c.User, c.Password, host, port, name), nil
	case DriverPostgres:
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			host, c.User, c.Password, name, port), nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
}

func (c DBConfig) dialector() (gorm.Dialector, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(c.Driver, DriverPostgres) {
		return postgres.Open(dsn), nil
	}
	return mysql.Open(dsn), nil
}

// InitDB 打开数据库连接并配置连接池
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	logrus.WithField("driver", dialector.Name()).Info("Database connected")
	return db, nil
}

// InitRedis 创建 Redis 客户端并检查连通性
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
