package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/genre-tagger/internal/config"
	"github.com/franz/genre-tagger/internal/redisstore"
	"github.com/franz/genre-tagger/internal/util"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the API response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached responses and request counts per source",
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries and old request log rows",
	RunE:  runCachePurge,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd, cacheClearCmd)
}

func openRedis(ctx context.Context, cfg *config.Config) (*redisstore.Store, error) {
	if cfg.CacheBackend != "redis" {
		return nil, nil
	}
	return redisstore.Open(ctx, redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	if cfg.CacheBackend == "redis" {
		rs, err := openRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rs.Close()

		rows := make([][]string, 0, len(cfg.Order()))
		for _, name := range cfg.Order() {
			today, err := rs.RequestsOn(ctx, string(name), now)
			if err != nil {
				return err
			}
			yesterday, err := rs.RequestsOn(ctx, string(name), now.AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				name.DisplayName(),
				humanize.Comma(today),
				humanize.Comma(yesterday),
			})
		}
		util.InfoLog("Redis cache at %s (entries expire on their own)", cfg.Redis.Addr)
		printTable([]string{"Source", "Requests today", "Yesterday"}, rows, alignLeft, alignRight, alignRight)
		return nil
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.CacheStats(ctx, now)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		util.InfoLog("Cache is empty")
		return nil
	}

	var entries, expired int
	var size int64
	rows := make([][]string, 0, len(stats)+1)
	for _, st := range stats {
		recent, _ := db.CountRequests(ctx, st.Source, now.Add(-24*time.Hour))
		rows = append(rows, []string{
			st.Source,
			util.FormatCount(st.Entries),
			util.FormatCount(st.Expired),
			humanize.Bytes(uint64(st.Bytes)),
			util.FormatCount(recent),
		})
		entries += st.Entries
		expired += st.Expired
		size += st.Bytes
	}
	rows = append(rows, []string{"total", util.FormatCount(entries), util.FormatCount(expired), humanize.Bytes(uint64(size)), ""})
	printTable([]string{"Source", "Entries", "Expired", "Size", "Requests (24h)"}, rows,
		alignLeft, alignRight, alignRight, alignRight, alignRight)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.CacheBackend == "redis" {
		util.InfoLog("Redis entries expire on their own; nothing to purge")
		return nil
	}

	lock, err := acquireLock(cfg.DB)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	entries, err := db.PurgeExpired(ctx, now)
	if err != nil {
		return err
	}
	requests, err := db.PurgeRequestLog(ctx, now)
	if err != nil {
		return err
	}
	util.SuccessLog("Removed %s expired entries and %s request log rows",
		humanize.Comma(entries), humanize.Comma(requests))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock, err := acquireLock(cfg.DB)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	var removed int64
	if cfg.CacheBackend == "redis" {
		rs, err := openRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if removed, err = rs.Clear(ctx); err != nil {
			return err
		}
	} else {
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if removed, err = db.ClearCache(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	util.SuccessLog("Removed %s cache entries", humanize.Comma(removed))
	return nil
}
