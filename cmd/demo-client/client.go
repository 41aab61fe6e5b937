package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gameView struct {
	Session struct {
		ID           string   `json:"id"`
		GameName     string   `json:"game_name"`
		Players      []player `json:"players"`
		CurrentRound int      `json:"current_round"`
	} `json:"session"`
	Totals    map[string]int `json:"totals"`
	Standings []struct {
		Player player `json:"player"`
		Total  int    `json:"total"`
		Rank   int    `json:"rank"`
	} `json:"standings"`
	AllScored bool `json:"all_scored"`
}

type endResult struct {
	Key  int64    `json:"key"`
	Game gameView `json:"game"`
}

type apiError struct {
	Status int
	Code   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("scoreboard api: %d %s", e.Status, e.Code)
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) newGame(ctx context.Context, name string, players []string) (gameView, error) {
	var v gameView
	err := c.do(ctx, http.MethodPost, "/api/game", map[string]any{"game_name": name, "players": players}, &v)
	return v, err
}

func (c *client) recordScore(ctx context.Context, playerID string, score int) (gameView, error) {
	var v gameView
	err := c.do(ctx, http.MethodPost, "/api/game/scores", map[string]any{"player_id": playerID, "score": score}, &v)
	return v, err
}

func (c *client) advance(ctx context.Context) (gameView, error) {
	var v gameView
	err := c.do(ctx, http.MethodPost, "/api/game/rounds/advance", nil, &v)
	return v, err
}

func (c *client) endGame(ctx context.Context) (endResult, error) {
	var out endResult
	err := c.do(ctx, http.MethodPost, "/api/game/end", nil, &out)
	return out, err
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Code: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
