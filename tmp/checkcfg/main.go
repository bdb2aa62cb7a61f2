package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trackline/internal/app"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/migrate"
	"trackline/internal/repo"
	"trackline/internal/server"
	"trackline/internal/workflow"
)

func main() {
	workspace := "/tmp/trackline-check"
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		panic(err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		panic(err)
	}
	cfg := config.Default("acme")
	r := repo.Repo{DB: conn}
	if err := app.EnsureOrganization(context.Background(), r, cfg); err != nil {
		panic(err)
	}
	e := workflow.New(conn, cfg)
	jwtSecret := "test-secret"
	h, err := server.New(context.Background(), server.Config{Engine: e, BasePath: "/v0", Auth: server.AuthConfig{JWTSecret: jwtSecret}})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(h)
	defer ts.Close()
	token := signToken(jwtSecret, "tester", "acme", time.Now().Add(time.Hour))

	body := map[string]any{
		"id":   "web",
		"name": "Web",
	}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v0/orgs/acme/projects", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer res.Body.Close()
	var resp any
	_ = json.NewDecoder(res.Body).Decode(&resp)
	fmt.Printf("status=%d resp=%v\n", res.StatusCode, resp)
}

func signToken(secret, userID, orgID string, expiresAt time.Time) string {
	claims := jwt.MapClaims{
		"sub":    userID,
		"org_id": orgID,
		"exp":    expiresAt.Unix(),
		"nbf":    time.Now().Unix(),
		"iat":    time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}
