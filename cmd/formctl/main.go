// cmd/formctl/main.go
//
// formctl uploads a user's documents, submits a form-generation job and polls
// until the completed form is ready.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"form-orchestrator/internal/client"
	"form-orchestrator/internal/infra/gcs"
)

func main() {
	var (
		gatewayURL = flag.String("gateway", "http://localhost:8080/applications", "submission gateway endpoint")
		statusURL  = flag.String("status", "http://localhost:8080/applications/status", "status query endpoint")
		bucket     = flag.String("bucket", "", "document bucket to upload into")
		username   = flag.String("username", "", "username owning the submission")
		form       = flag.String("form", "canexport_application_fomr", "application form type")
		outFile    = flag.String("o", "", "write the completed form to this file instead of stdout")
		interval   = flag.Duration("poll-interval", client.DefaultPollInterval, "status poll interval")
		maxWait    = flag.Duration("max-wait", client.DefaultMaxWait, "total wait budget before giving up")
	)
	flag.Parse()

	files := flag.Args()
	if *username == "" || *bucket == "" || len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: formctl -username NAME -bucket BUCKET [flags] document...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	docs := make([]client.Document, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}
		name := filepath.Base(file)
		docs = append(docs, client.Document{
			Name:        name,
			ContentType: contentTypeFor(name),
			Data:        data,
		})
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}
	defer storageClient.Close()

	prefix := fmt.Sprintf("documents/%s", *username)
	uploader := client.NewUploader(gcs.NewObjectStore(storageClient), *bucket, logger)
	if err := uploader.UploadAll(ctx, prefix, docs); err != nil {
		log.Fatalf("upload failed, submission aborted: %v", err)
	}

	poller := client.NewPoller(*gatewayURL, *statusURL, logger)
	poller.PollInterval = *interval
	poller.MaxWait = *maxWait
	poller.OnProgress = func(u client.StatusUpdate) {
		fmt.Fprintf(os.Stderr, "status=%s stage=%d elapsed=%s\n", u.Status, u.StageIndex, u.Elapsed.Round(time.Second))
	}

	output, err := poller.Run(ctx, client.SubmissionParams{
		Username:        *username,
		ApplicationForm: *form,
		DocumentCount:   len(docs),
		StoragePrefix:   prefix,
	})
	if err != nil {
		log.Fatalf("execution did not complete: %v", err)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, output, 0o644); err != nil {
			log.Fatalf("failed to write output: %v", err)
		}
		fmt.Fprintf(os.Stderr, "completed form written to %s\n", *outFile)
		return
	}
	fmt.Println(string(output))
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
