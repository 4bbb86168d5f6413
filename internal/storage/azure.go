package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"

	apperrors "go-ocr-eval/internal/errors"
)

type azureProvider struct {
	client     *azblob.Client
	log        *logrus.Logger
	stagingDir string
}

// NewAzureProvider returns a provider that downloads a container prefix into
// a temporary staging directory.
func NewAzureProvider(accountName, accountKey string, log *logrus.Logger) (CorpusProvider, error) {
	if accountName == "" || accountKey == "" {
		return nil, apperrors.NewValidationError("azure sources require AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureProvider{client: client, log: log}, nil
}

// Fetch downloads every blob under azure://container/prefix into a staging
// directory, preserving paths relative to the prefix.
func (p *azureProvider) Fetch(ctx context.Context, source string) (string, error) {
	container, prefix, err := parseAzureSource(source)
	if err != nil {
		return "", err
	}

	stagingDir, err := os.MkdirTemp("", "ocr-eval-corpus-*")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	p.stagingDir = stagingDir

	p.log.WithFields(logrus.Fields{
		"container": container,
		"prefix":    prefix,
		"staging":   stagingDir,
	}).Info("Downloading corpus from Azure blob storage")

	count := 0
	pager := p.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("list blobs in %s: %w", container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if err := p.downloadBlob(ctx, container, prefix, *item.Name); err != nil {
				return "", err
			}
			count++
		}
	}

	if count == 0 {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("no blobs under %s", source), nil)
	}

	p.log.WithField("blobs", count).Info("Corpus download complete")
	return stagingDir, nil
}

// Cleanup removes the staging directory.
func (p *azureProvider) Cleanup() error {
	if p.stagingDir == "" {
		return nil
	}
	err := os.RemoveAll(p.stagingDir)
	p.stagingDir = ""
	return err
}

func (p *azureProvider) downloadBlob(ctx context.Context, container, prefix, blobName string) error {
	rel := strings.TrimPrefix(strings.TrimPrefix(blobName, prefix), "/")
	if rel == "" {
		rel = filepath.Base(blobName)
	}
	localPath := filepath.Join(p.stagingDir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", localPath, err)
	}

	resp, err := p.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", blobName, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

// parseAzureSource splits azure://container/prefix into its parts. The
// prefix may be empty.
func parseAzureSource(source string) (container, prefix string, err error) {
	rest := strings.TrimPrefix(source, AzureScheme)
	if rest == source || rest == "" {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("invalid azure source %q, want azure://container/prefix", source), nil)
	}
	parts := strings.SplitN(rest, "/", 2)
	container = parts[0]
	if container == "" {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("invalid azure source %q, missing container", source), nil)
	}
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return container, prefix, nil
}
