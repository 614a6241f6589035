// Package textract wraps the AWS Textract expense APIs behind the shapes
// the normalization engine consumes. All waiting, polling and pagination
// lives here; the engine only ever sees already-fetched pages.
package textract

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// allowedExts are the source formats accepted for analysis.
var allowedExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// asyncExts are the formats the asynchronous expense API accepts. Plain
// images go through the synchronous call instead.
var asyncExts = map[string]bool{
	".pdf":  true,
	".tif":  true,
	".tiff": true,
}

// AllowedExtension reports whether the file can be submitted for analysis.
func AllowedExtension(name string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}

// Client talks to the Textract expense and document-analysis APIs.
type Client struct {
	svc      *awstextract.Client
	poll     time.Duration
	maxPolls int
}

// New builds a client for the configured region. Credentials come from the
// default AWS provider chain.
func New(ctx context.Context, cfg models.BackendConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	poll := time.Duration(cfg.PollSeconds * float64(time.Second))
	if poll <= 0 {
		poll = 4 * time.Second
	}
	maxPolls := cfg.MaxPollLoops
	if maxPolls <= 0 {
		maxPolls = 150
	}

	return &Client{
		svc:      awstextract.NewFromConfig(awsCfg),
		poll:     poll,
		maxPolls: maxPolls,
	}, nil
}

// AnalyzeExpenseAuto runs the right expense API for the object's format:
// PDF and TIFF go through the asynchronous job (start, poll, paginate),
// images through the synchronous call. Either way the result is the full
// set of extracted pages.
func (c *Client) AnalyzeExpenseAuto(ctx context.Context, bucket, key string) ([]models.PageExtraction, error) {
	if asyncExts[strings.ToLower(filepath.Ext(key))] {
		return c.analyzeExpenseAsync(ctx, bucket, key)
	}
	return c.analyzeExpenseSync(ctx, bucket, key)
}

func (c *Client) analyzeExpenseAsync(ctx context.Context, bucket, key string) ([]models.PageExtraction, error) {
	start, err := c.svc.StartExpenseAnalysis(ctx, &awstextract.StartExpenseAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start expense analysis: %w", err)
	}
	jobID := aws.ToString(start.JobId)
	log.Printf("Started expense job %s for s3://%s/%s", jobID, bucket, key)

	if err := c.waitForJob(ctx, jobID, c.expenseJobStatus); err != nil {
		return nil, err
	}

	var docs []types.ExpenseDocument
	var token *string
	for {
		out, err := c.svc.GetExpenseAnalysis(ctx, &awstextract.GetExpenseAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch expense results: %w", err)
		}
		docs = append(docs, out.ExpenseDocuments...)
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return convertExpenseDocuments(docs), nil
}

func (c *Client) analyzeExpenseSync(ctx context.Context, bucket, key string) ([]models.PageExtraction, error) {
	out, err := c.svc.AnalyzeExpense(ctx, &awstextract.AnalyzeExpenseInput{
		Document: &types.Document{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze expense: %w", err)
	}
	return convertExpenseDocuments(out.ExpenseDocuments), nil
}

// FetchFormsKeyValues runs the generic FORMS analysis job used for fallback
// header resolution and returns its key-value pairs.
func (c *Client) FetchFormsKeyValues(ctx context.Context, bucket, key string) ([]models.KeyValue, error) {
	start, err := c.svc.StartDocumentAnalysis(ctx, &awstextract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
		FeatureTypes: []types.FeatureType{types.FeatureTypeForms},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start forms analysis: %w", err)
	}
	jobID := aws.ToString(start.JobId)
	log.Printf("Started forms job %s for s3://%s/%s", jobID, bucket, key)

	if err := c.waitForJob(ctx, jobID, c.formsJobStatus); err != nil {
		return nil, err
	}

	var blocks []types.Block
	var token *string
	for {
		out, err := c.svc.GetDocumentAnalysis(ctx, &awstextract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch forms results: %w", err)
		}
		blocks = append(blocks, out.Blocks...)
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return keyValuesFromBlocks(blocks), nil
}

// waitForJob polls the job status until it reaches a terminal state or the
// poll budget runs out. PARTIAL_SUCCESS counts as usable, matching the
// backend's contract for multi-page documents.
func (c *Client) waitForJob(ctx context.Context, jobID string, status func(context.Context, string) (types.JobStatus, error)) error {
	for i := 0; i < c.maxPolls; i++ {
		st, err := status(ctx, jobID)
		if err != nil {
			return err
		}
		log.Printf("[%s] status: %s", jobID, st)
		switch st {
		case types.JobStatusSucceeded, types.JobStatusPartialSuccess:
			return nil
		case types.JobStatusFailed:
			return fmt.Errorf("job %s failed", jobID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.poll):
		}
	}
	return fmt.Errorf("job %s did not finish after %d polls", jobID, c.maxPolls)
}

func (c *Client) expenseJobStatus(ctx context.Context, jobID string) (types.JobStatus, error) {
	out, err := c.svc.GetExpenseAnalysis(ctx, &awstextract.GetExpenseAnalysisInput{
		JobId:      aws.String(jobID),
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to poll expense job: %w", err)
	}
	return out.JobStatus, nil
}

func (c *Client) formsJobStatus(ctx context.Context, jobID string) (types.JobStatus, error) {
	out, err := c.svc.GetDocumentAnalysis(ctx, &awstextract.GetDocumentAnalysisInput{
		JobId:      aws.String(jobID),
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to poll forms job: %w", err)
	}
	return out.JobStatus, nil
}
