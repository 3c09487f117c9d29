package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Etcd   *ETCDConfig   `yaml:"etcd"`
	Redis  *RedisConfig  `yaml:"redis"`
	Client *ClientConfig `yaml:"client"`
}

// ETCDConfig etcd 集群配置
type ETCDConfig struct {
	Endpoints   []string      `yaml:"endpoints"`   // etcd 的地址
	DialTimeout time.Duration `yaml:"dialTimeout"` // etcd 的连接超时时间
	Username    string        `yaml:"username"`    // etcd 的用户名
	Password    string        `yaml:"password"`    // etcd 的密码
}

// RedisConfig redis 配置
type RedisConfig struct {
	Url string `yaml:"url"` // redis 的地址
}

// ClientConfig 客户端配置
type ClientConfig struct {
	DefaultEndpoint string        `yaml:"defaultEndpoint"` // 默认路由端点，host:port
	DefaultDatabase string        `yaml:"defaultDatabase"` // 默认数据库
	MaxRetries      int           `yaml:"maxRetries"`      // 路由失效后的最大重试次数
	RPC             *RPCConfig    `yaml:"rpc"`             // 底层 RPC 配置
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`    // 路由拉取超时时间
}

// RPCConfig 底层 gRPC 连接配置
type RPCConfig struct {
	MaxSendMsgLen      int           `yaml:"maxSendMsgLen"`      // 发送消息最大长度，-1 表示不限制
	MaxRecvMsgLen      int           `yaml:"maxRecvMsgLen"`      // 接收消息最大长度，-1 表示不限制
	KeepAliveInterval  time.Duration `yaml:"keepAliveInterval"`  // http2 ping 间隔
	KeepAliveTimeout   time.Duration `yaml:"keepAliveTimeout"`   // http2 ping 确认超时时间
	KeepAliveWhileIdle bool          `yaml:"keepAliveWhileIdle"` // 空闲时是否保活
	ConnectTimeout     time.Duration `yaml:"connectTimeout"`     // 连接超时时间
	WriteTimeout       time.Duration `yaml:"writeTimeout"`       // 写请求超时时间
	QueryTimeout       time.Duration `yaml:"queryTimeout"`       // 查询请求超时时间
}

func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		MaxSendMsgLen:      20 * (1 << 20), // 20MB
		MaxRecvMsgLen:      1 << 30,        // 1GB
		KeepAliveInterval:  10 * time.Minute,
		KeepAliveTimeout:   3 * time.Second,
		KeepAliveWhileIdle: true,
		ConnectTimeout:     3 * time.Second,
		WriteTimeout:       5 * time.Second,
		QueryTimeout:       60 * time.Second,
	}
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config
	var yamlBytes []byte

	if b, err := os.ReadFile(configPath); err != nil {
		return nil, err
	} else {
		// 扩充环境变量
		yamlBytes = []byte(os.ExpandEnv(string(b)))
	}

	if err := yaml.Unmarshal(yamlBytes, &cfg); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		cfg.Client = &ClientConfig{}
	}
	if cfg.Client.RPC == nil {
		cfg.Client.RPC = DefaultRPCConfig()
	}
	if cfg.Client.MaxRetries <= 0 {
		cfg.Client.MaxRetries = 3
	}
	if cfg.Client.FetchTimeout <= 0 {
		cfg.Client.FetchTimeout = 5 * time.Second
	}
	return &cfg, nil
}
