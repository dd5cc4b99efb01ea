package main

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	UserID         string `env:"CHAT_USER_ID,default=alice"`
	PeerID         string `env:"CHAT_PEER_ID,default=bob"`
}
