package model

// GameConfig holds every configurable rule of how a game is played.
// Rooms replace it wholesale on update, never field by field.
type GameConfig struct {
	Basic BasicConfig `json:"basic_configs"`
	Play  PlayConfig  `json:"play_configs"`
	Time  TimeConfig  `json:"time_configs"`
	Score ScoreConfig `json:"score_configs"`
}

// BasicConfig covers room-level limits.
type BasicConfig struct {
	MaxPlayerCount int `json:"max_player_count"`
	DeckSize       int `json:"deck_size"`
}

// PlayConfig, TimeConfig and ScoreConfig are reserved for the game
// rules engine, which is outside this core.
type PlayConfig struct{}

type TimeConfig struct{}

type ScoreConfig struct{}

// DefaultGameConfig returns the configuration new rooms start with.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Basic: BasicConfig{
			MaxPlayerCount: 6,
			DeckSize:       4,
		},
	}
}
