package server

import (
	"encoding/json"
	"os"
)

type Config struct {
	WorkerSpeed int    `json:"workerSpeed"`
	WorkerQueue int    `json:"workerQueue"`
	FileLog     string `json:"fileLog"`
	Port        string `json:"port"`
	Ssl         bool   `json:"ssl"`
	SslCert     string `json:"sslCert"`
	SslKey      string `json:"sslKey"`
}

var GlobalConfig Config
var PathFile string

func ConfigLoad() {
	var err error

	if len(os.Args) > 1 {
		PathFile = os.Args[1]
	} else {
		PathFile = "./config.json"
	}

	configFile, err := os.Open(PathFile)
	defer configFile.Close()
	if err != nil {
		GlobalConfig = Config{Port: ":8000", FileLog: "beehive.log"}
		SetLogger(GlobalConfig.FileLog)
		return
	}
	jsonParser := json.NewDecoder(configFile)
	jsonParser.Decode(&GlobalConfig)
	if GlobalConfig.Port == "" {
		GlobalConfig.Port = ":8000"
	}
	if GlobalConfig.FileLog == "" {
		GlobalConfig.FileLog = "beehive.log"
	}

	SetLogger(GlobalConfig.FileLog)
}
