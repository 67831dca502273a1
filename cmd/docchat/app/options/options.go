// Package options contains flags and options for initializing the document
// chat server.
package options

import (
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docchat "github.com/kart-io/docchat/internal/docchat"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	ragopts "github.com/kart-io/docchat/pkg/options/rag"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
	httpopts "github.com/kart-io/docchat/pkg/options/server/http"
	sessionopts "github.com/kart-io/docchat/pkg/options/session"
	uploadopts "github.com/kart-io/docchat/pkg/options/upload"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains retrieval and prompting configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// UploadOptions contains document upload configuration.
	UploadOptions *uploadopts.Options `json:"upload" mapstructure:"upload"`

	// SessionOptions contains session history configuration.
	SessionOptions *sessionopts.Options `json:"session" mapstructure:"session"`

	// RedisOptions contains Redis connection configuration for the redis
	// session backend.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		UploadOptions:    uploadopts.NewOptions(),
		SessionOptions:   sessionopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
	}
}

// AddFlags adds all server flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.ChatOptions.AddFlags(fs, "chat")
	o.RAGOptions.AddFlags(fs)
	o.UploadOptions.AddFlags(fs)
	o.SessionOptions.AddFlags(fs)
	o.RedisOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return err
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return err
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return err
	}
	if err := o.UploadOptions.Complete(); err != nil {
		return err
	}
	return o.SessionOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	errs = append(errs, o.HTTPOptions.Validate()...)
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.UploadOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	if o.SessionOptions.Backend == sessionopts.BackendRedis {
		errs = append(errs, o.RedisOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a docchat.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docchat.Config, error) {
	return &docchat.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		UploadOptions:    o.UploadOptions,
		SessionOptions:   o.SessionOptions,
		RedisOptions:     o.RedisOptions,
	}, nil
}
