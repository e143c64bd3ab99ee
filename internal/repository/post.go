package repository

import (
	"context"
	"time"

	"echoes/internal/models"
	"echoes/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListOptions describes a visibility-filtered post listing.
type ListOptions struct {
	ViewerID uint
	// Now is the cutoff for published_at; posts scheduled later are hidden.
	Now    time.Time
	Offset int
	Limit  int
	// CommentLimit caps the comment prefix attached to each post. Zero attaches
	// every comment.
	CommentLimit int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tags []string) error
	GetByID(ctx context.Context, id uint, opts ListOptions) (*models.Post, error)
	GetUnscoped(ctx context.Context, id uint) (*models.Post, error)
	Feed(ctx context.Context, authorIDs []uint, opts ListOptions) ([]*models.Post, error)
	ListReplies(ctx context.Context, parentID uint, opts ListOptions) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, opts ListOptions) ([]*models.Post, error)
	Search(ctx context.Context, query string, opts ListOptions) ([]*models.Post, error)
	ListByHashtag(ctx context.Context, tag string, opts ListOptions) ([]*models.Post, error)
	ListBookmarked(ctx context.Context, userID uint, opts ListOptions) ([]*models.Post, error)
	UpdateContent(ctx context.Context, id uint, content *string, tags []string) error
	SoftDelete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and links its hashtags in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post, tags []string) error {
	defer observability.TrackQuery("create", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return linkHashtags(tx, post.ID, tags, false)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// linkHashtags upserts tags and links them to postID, dropping existing links
// first when replace is set.
func linkHashtags(tx *gorm.DB, postID uint, tags []string, replace bool) error {
	if replace {
		if err := tx.Exec("DELETE FROM post_hashtags WHERE post_id = ?", postID).Error; err != nil {
			return err
		}
	}
	if len(tags) == 0 {
		return nil
	}

	rows := make([]models.Hashtag, len(tags))
	for i, tag := range tags {
		rows[i] = models.Hashtag{Tag: tag}
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return err
	}

	var hashtagIDs []uint
	if err := tx.Model(&models.Hashtag{}).Where("tag IN ?", tags).Pluck("id", &hashtagIDs).Error; err != nil {
		return err
	}
	links := make([]map[string]interface{}, len(hashtagIDs))
	for i, hid := range hashtagIDs {
		links[i] = map[string]interface{}{"post_id": postID, "hashtag_id": hid}
	}
	return tx.Table("post_hashtags").Clauses(clause.OnConflict{DoNothing: true}).Create(links).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint, opts ListOptions) (*models.Post, error) {
	var post models.Post
	err := r.detailed(readDB(r.db).WithContext(ctx), opts).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	if err := r.attach(ctx, []*models.Post{&post}, opts.CommentLimit); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetUnscoped loads a post including soft-deleted rows, without details.
func (r *postRepository) GetUnscoped(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Unscoped().First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) Feed(ctx context.Context, authorIDs []uint, opts ListOptions) ([]*models.Post, error) {
	span, ctx := observability.StartRepositorySpan(ctx, "Feed", "posts")
	defer span.End()
	defer observability.TrackQuery("feed", "posts")()

	if len(authorIDs) == 0 {
		return []*models.Post{}, nil
	}
	posts, err := r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id IN ?", authorIDs).
			Order("posts.published_at DESC, posts.id DESC")
	})
	span.SetError(err)
	return posts, err
}

func (r *postRepository) ListReplies(ctx context.Context, parentID uint, opts ListOptions) ([]*models.Post, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.reply_to_id = ?", parentID).
			Order("posts.published_at ASC, posts.id ASC")
	})
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, opts ListOptions) ([]*models.Post, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id = ?", authorID).
			Order("posts.published_at DESC, posts.id DESC")
	})
}

// Search matches query case-insensitively anywhere in the post content.
func (r *postRepository) Search(ctx context.Context, query string, opts ListOptions) ([]*models.Post, error) {
	span, ctx := observability.StartRepositorySpan(ctx, "Search", "posts")
	defer span.End()
	defer observability.TrackQuery("search", "posts")()

	posts, err := r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where(`LOWER(posts.content) LIKE ? ESCAPE '\'`, containsPattern(query)).
			Order("posts.published_at DESC, posts.id DESC")
	})
	span.SetError(err)
	return posts, err
}

// ListByHashtag lists posts linked to tag, which must already be normalized.
func (r *postRepository) ListByHashtag(ctx context.Context, tag string, opts ListOptions) ([]*models.Post, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
			Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
			Where("hashtags.tag = ?", tag).
			Order("posts.published_at DESC, posts.id DESC")
	})
}

// ListBookmarked lists the user's bookmarked posts, most recently saved first.
func (r *postRepository) ListBookmarked(ctx context.Context, userID uint, opts ListOptions) ([]*models.Post, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN bookmarks ON bookmarks.post_id = posts.id AND bookmarks.user_id = ?", userID).
			Order("bookmarks.created_at DESC, bookmarks.id DESC")
	})
}

// UpdateContent replaces the content and hashtag links of a live post. A nil
// content clears the text.
func (r *postRepository) UpdateContent(ctx context.Context, id uint, content *string, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", id).Update("content", content)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return linkHashtags(tx, id, tags, true)
	})
	if err != nil {
		return notFoundOr(err, "Post", id)
	}
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// list runs a visibility-filtered, detailed listing. Soft-deleted posts are
// excluded by the default scope and unpublished ones by opts.Now.
func (r *postRepository) list(ctx context.Context, opts ListOptions, scope func(*gorm.DB) *gorm.DB) ([]*models.Post, error) {
	posts := []*models.Post{}
	q := r.detailed(readDB(r.db).WithContext(ctx), opts).
		Where("posts.published_at <= ?", opts.Now)
	q = scope(q)
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attach(ctx, posts, opts.CommentLimit); err != nil {
		return nil, err
	}
	return posts, nil
}

// detailed selects posts with aggregate counts, the viewer's liked and
// bookmarked flags, and one hop of echo and reply parents. Parents the viewer
// cannot see yet are left nil.
func (r *postRepository) detailed(db *gorm.DB, opts ListOptions) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count, " +
		"(SELECT COUNT(*) FROM posts AS echoes WHERE echoes.echo_parent_id = posts.id AND echoes.deleted_at IS NULL) AS echoes_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count"

	viewerID := opts.ViewerID
	if viewerID != 0 {
		db = db.Select(selectQuery+", "+
			"EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked, "+
			"EXISTS(SELECT 1 FROM bookmarks WHERE bookmarks.post_id = posts.id AND bookmarks.user_id = ?) AS bookmarked",
			viewerID, viewerID)
	} else {
		db = db.Select(selectQuery + ", false AS liked, false AS bookmarked")
	}

	cutoff := opts.Now
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	parentVisible := "published_at <= ? OR author_id = ?"

	return db.
		Preload("Author").
		Preload("EchoParent", parentVisible, cutoff, viewerID).
		Preload("EchoParent.Author").
		Preload("ReplyTo", parentVisible, cutoff, viewerID).
		Preload("ReplyTo.Author").
		Preload("Hashtags")
}

// attach fills the comment prefix and the like user ids of posts.
func (r *postRepository) attach(ctx context.Context, posts []*models.Post, commentLimit int) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		p.Comments = []models.Comment{}
		p.LikeUserIDs = []uint{}
		byID[p.ID] = p
	}

	db := readDB(r.db).WithContext(ctx)

	var comments []models.Comment
	var err error
	if commentLimit > 0 {
		ranked := db.Model(&models.Comment{}).
			Select("comments.*, ROW_NUMBER() OVER (PARTITION BY comments.post_id ORDER BY comments.created_at, comments.id) AS rn").
			Where("comments.post_id IN ?", ids)
		err = db.Table("(?) AS ranked", ranked).
			Where("ranked.rn <= ?", commentLimit).
			Order("ranked.post_id, ranked.created_at, ranked.id").
			Preload("Author").
			Find(&comments).Error
	} else {
		err = db.Where("post_id IN ?", ids).
			Order("created_at ASC, id ASC").
			Preload("Author").
			Find(&comments).Error
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, c := range comments {
		if p := byID[c.PostID]; p != nil {
			p.Comments = append(p.Comments, c)
		}
	}

	var likes []models.Like
	if err := db.Select("user_id", "post_id").
		Where("post_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}
	for _, l := range likes {
		if p := byID[l.PostID]; p != nil {
			p.LikeUserIDs = append(p.LikeUserIDs, l.UserID)
		}
	}
	return nil
}
