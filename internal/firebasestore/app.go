// Package firebasestore implements the document store on Cloud Firestore.
package firebasestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Config stores Firebase project settings.
type Config struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// NewApp initializes the Firebase Admin SDK. Base64 credentials win over a file;
// with neither, application default credentials are used.
func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firebase: project id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("firebase: decode base64 credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	return app, nil
}
