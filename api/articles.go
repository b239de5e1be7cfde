package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetic-labs/courier-go/courier"
)

// Article is the wire shape of an article resource.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateArticleInput is the payload for Create.
type CreateArticleInput struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	AuthorID string   `json:"authorId"`
	Tags     []string `json:"tags,omitempty"`
}

// ArticlesService wraps the article endpoints. List rides a response
// cache, Create is memoized by request shape, Search runs retried
// dispatches under a concurrency bound, and Get goes straight through.
type ArticlesService struct {
	base   *courier.Requester
	cached *courier.CacheRequester
	idem   *courier.CacheRequester
	search *courier.ParallelRequester
	log    zerolog.Logger
}

func newArticlesService(
	reg *courier.Registry,
	log zerolog.Logger,
	retryAttempts, maxParallel int,
	cacheOpts []courier.CacheOption,
) *ArticlesService {
	return &ArticlesService{
		base:   reg.Requester(),
		cached: courier.NewCacheRequester(reg, cacheOpts...),
		idem:   courier.NewIdempotentRequester(reg),
		search: courier.NewParallelRequester(reg, maxParallel,
			courier.WithParallelNext(courier.NewRetryRequester(reg, retryAttempts))),
		log: log,
	}
}

// List fetches all articles. Repeated calls within the cache TTL are
// served from the cache without a network dispatch.
func (s *ArticlesService) List(ctx context.Context) ([]Article, error) {
	resp, err := s.cached.Get(ctx, "/articles", nil)
	if err != nil {
		s.log.Error().Err(err).Msg("list articles failed")
		return nil, err
	}

	var articles []Article
	if err := resp.Decode(&articles); err != nil {
		s.log.Error().Err(err).Msg("decode articles failed")
		return nil, err
	}
	return articles, nil
}

// Get fetches a single article by id.
func (s *ArticlesService) Get(ctx context.Context, id string) (*Article, error) {
	resp, err := s.base.Get(ctx, "/articles/"+id, nil)
	if err != nil {
		s.log.Error().Err(err).Str("article_id", id).Msg("get article failed")
		return nil, err
	}

	var article Article
	if err := resp.Decode(&article); err != nil {
		s.log.Error().Err(err).Str("article_id", id).Msg("decode article failed")
		return nil, err
	}
	return &article, nil
}

// Create submits a new article. An identical resubmission within the
// memoization window replays the first result instead of creating a
// duplicate.
func (s *ArticlesService) Create(ctx context.Context, in CreateArticleInput) (*Article, error) {
	resp, err := s.idem.Post(ctx, "/articles", in, nil)
	if err != nil {
		s.log.Error().Err(err).Str("title", in.Title).Msg("create article failed")
		return nil, err
	}

	var article Article
	if err := resp.Decode(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Update replaces an article.
func (s *ArticlesService) Update(ctx context.Context, id string, in CreateArticleInput) (*Article, error) {
	resp, err := s.base.Put(ctx, "/articles/"+id, in, nil)
	if err != nil {
		s.log.Error().Err(err).Str("article_id", id).Msg("update article failed")
		return nil, err
	}

	var article Article
	if err := resp.Decode(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Delete removes an article.
func (s *ArticlesService) Delete(ctx context.Context, id string) error {
	if _, err := s.base.Delete(ctx, "/articles/"+id, nil); err != nil {
		s.log.Error().Err(err).Str("article_id", id).Msg("delete article failed")
		return err
	}
	return nil
}

// Search queries articles by term. Dispatches are retried on failure and
// capped so a burst of searches cannot flood the upstream.
func (s *ArticlesService) Search(ctx context.Context, term string) ([]Article, error) {
	resp, err := s.search.Get(ctx, "/articles/search", &courier.RequestConfig{
		Params: map[string]string{"q": term},
	})
	if err != nil {
		s.log.Error().Err(err).Str("term", term).Msg("search articles failed")
		return nil, err
	}

	var articles []Article
	if err := resp.Decode(&articles); err != nil {
		return nil, err
	}
	return articles, nil
}
