package cmd

import (
	"context"
	"fmt"
	"time"

	"WaveDeck/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis catalog cache connection",
	Long:  `Connect to the configured Redis and run a set/get/delete round trip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Printf("Redis: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("cannot connect to Redis: %w", err)
		}
		defer client.Close()
		fmt.Println("Redis connection OK")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := db.CheckRedis(ctx, client); err != nil {
			return fmt.Errorf("redis round trip failed: %w", err)
		}
		fmt.Println("Redis read/write OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
