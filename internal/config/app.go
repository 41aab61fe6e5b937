package config

type AppConfig struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	storageCfg, err := LoadStorage()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:  serverCfg,
		Storage: storageCfg,
		Log:     logCfg,
	}, nil
}
