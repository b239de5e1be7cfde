// Command example demonstrates assembling the courier registry, the
// decorators, and the business API modules against a public JSON API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetic-labs/courier-go/api"
	"github.com/kinetic-labs/courier-go/courier"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Low-level usage: registry + decorators assembled by hand.
	reg := courier.NewRegistry(courier.WithLogger(log))
	reg.SetGlobal(courier.GlobalConfig{
		BaseURL: "https://jsonplaceholder.typicode.com",
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: 10 * time.Second,
	})
	reg.Inject(courier.NewAdapter(courier.AdapterPooled, courier.WithConfig(courier.LowLatencyConfig())))

	cached := courier.NewCacheRequester(reg, courier.WithTTL(time.Minute))
	retried := courier.NewRetryRequester(reg, 3)

	resp, err := cached.Get(ctx, "/todos/1", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch todo")
	}
	fmt.Printf("todo: %s\n", resp.String())

	// The second call is served from the cache.
	if _, err := cached.Get(ctx, "/todos/1", nil); err != nil {
		log.Fatal().Err(err).Msg("fetch todo again")
	}

	resp, err = retried.Get(ctx, "/users/1", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch user")
	}

	var user struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := resp.Decode(&user); err != nil {
		log.Fatal().Err(err).Msg("decode user")
	}
	fmt.Printf("user: %s <%s>\n", user.Name, user.Email)

	// High-level usage: the business API modules.
	client := api.New(api.Options{
		BaseURL: "https://jsonplaceholder.typicode.com",
		Timeout: 10 * time.Second,
		Logger:  log,
	})

	users, err := client.Users.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list users")
	}
	fmt.Printf("users: %d\n", len(users))

	// Runtime reconfiguration flows into already-built services.
	client.Reconfigure(api.Options{
		Headers: map[string]string{"X-Example": "reconfigured"},
	})

	if _, err := client.Users.List(ctx); err != nil {
		log.Fatal().Err(err).Msg("list users after reconfigure")
	}
}
