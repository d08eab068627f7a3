package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Fedict/jtrust"
	"github.com/Fedict/jtrust/internal/crlcache"
	"github.com/Fedict/jtrust/internal/fetch"
)

const envCacheDir = "TRUSTVALIDATOR_CACHE_DIR"

func newVerifyCmd() *cobra.Command {
	var (
		anchorPath  string
		atFlag      string
		cacheSize   int
		verbose     bool
		dialTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify <chain.pem>",
		Short: "Verify a leaf-first PEM certificate chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], anchorPath, atFlag, cacheSize, dialTimeout, verbose)
		},
	}

	cmd.Flags().StringVar(&anchorPath, "anchor", "", "PEM file containing one or more trust anchor certificates (required)")
	cmd.Flags().StringVar(&atFlag, "at", "", "validation time, RFC3339 (default: now)")
	cmd.Flags().IntVar(&cacheSize, "crl-cache-size", 512, "maximum number of cached CRLs")
	cmd.Flags().DurationVar(&dialTimeout, "fetch-timeout", 10*time.Second, "per-fetch network timeout")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log linker decisions to stderr")
	cmd.MarkFlagRequired("anchor")

	return cmd
}

func runVerify(cmd *cobra.Command, chainPath, anchorPath, atFlag string, cacheSize int, dialTimeout time.Duration, verbose bool) error {
	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		log = l
	}
	defer log.Sync()

	validationTime := time.Now()
	if atFlag != "" {
		t, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		validationTime = t
	}

	anchorCerts, err := jtrust.LoadCertificates(anchorPath)
	if err != nil {
		return fmt.Errorf("load anchors: %w", err)
	}
	anchors := jtrust.NewTrustAnchorStore(anchorCerts...)

	chain, err := jtrust.LoadCertificates(chainPath)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}

	fetcher := fetch.NewMultiSchemeFetcher(fetch.NewHTTPFetcher(dialTimeout), fetch.NewLDAPFetcher(dialTimeout))
	cache, err := crlcache.New(fetcher, cacheSize)
	if err != nil {
		return fmt.Errorf("build CRL cache: %w", err)
	}

	validator := jtrust.NewTrustValidator(anchors,
		jtrust.WithLogger(log.Sugar()),
		jtrust.WithRevocationPolicy(jtrust.FailClosed),
	)
	validator.AddTrustLinker(jtrust.NewCRLTrustLinker(cache, nil, log.Sugar()))

	revData := jtrust.NewRevocationData()
	verdict, err := validator.IsTrusted(context.Background(), chain, validationTime, revData)
	if err != nil {
		return fmt.Errorf("validate chain: %w", err)
	}

	reportVerdict(cmd, verdict, revData)
	if !verdict.Trusted {
		return errUntrustedChain
	}
	return nil
}

// errUntrustedChain signals a clean, already-reported UNTRUSTED verdict
// rather than an operational failure; main exits 1 without printing it.
var errUntrustedChain = fmt.Errorf("chain is untrusted")

func reportVerdict(cmd *cobra.Command, verdict jtrust.TrustVerdict, revData *jtrust.RevocationData) {
	out := cmd.OutOrStdout()
	if verdict.Trusted {
		fmt.Fprintln(out, "Chain verification: TRUSTED")
	} else {
		fmt.Fprintln(out, "Chain verification: UNTRUSTED")
		fmt.Fprintf(out, "  Reason:    %s\n", verdict.Reason)
		fmt.Fprintf(out, "  Detail:    %s\n", verdict.Detail)
		fmt.Fprintf(out, "  Failed at: chain position %d\n", verdict.FailedAt)
	}
	fmt.Fprintf(out, "  CRLs consulted: %d\n", len(revData.CRLs()))
}
