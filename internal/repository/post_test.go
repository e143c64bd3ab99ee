package repository

import (
	"context"
	"testing"
	"time"

	"echoes/internal/models"
	"echoes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func visible(viewerID uint) ListOptions {
	return ListOptions{ViewerID: viewerID, Now: time.Now().UTC(), Limit: 20, CommentLimit: 3}
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func addComment(t *testing.T, db *gorm.DB, postID, authorID uint, content string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.Comment{PostID: postID, AuthorID: authorID, Content: content, CreatedAt: at}).Error)
}

func TestPostRepository_CreateIndexesHashtags(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")

	content := "shipping #go and #sqlite"
	post := &models.Post{AuthorID: ada.ID, Content: &content, PublishedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, post, []string{"go", "sqlite"}))
	require.NotZero(t, post.ID)

	other := "more #go"
	require.NoError(t, repo.Create(ctx, &models.Post{AuthorID: ada.ID, Content: &other, PublishedAt: time.Now().UTC()}, []string{"go"}))

	var tagCount int64
	require.NoError(t, db.Model(&models.Hashtag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(2), tagCount, "existing tags are reused")

	got, err := repo.GetByID(ctx, post.ID, ListOptions{ViewerID: ada.ID})
	require.NoError(t, err)
	tags := []string{}
	for _, h := range got.Hashtags {
		tags = append(tags, h.Tag)
	}
	assert.ElementsMatch(t, []string{"go", "sqlite"}, tags)
	require.NotNil(t, got.Author)
	assert.Equal(t, "ada", got.Author.Name)
}

func TestPostRepository_GetByIDDetails(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, ada.ID, "hello")

	_, err := engagement.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, err = engagement.AddBookmark(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	testutil.CreatePost(t, db, bob.ID, "", testutil.EchoOf(post.ID))
	deletedEcho := testutil.CreatePost(t, db, bob.ID, "", testutil.EchoOf(post.ID))
	require.NoError(t, repo.SoftDelete(ctx, deletedEcho.ID))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		addComment(t, db, post.ID, bob.ID, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	got, err := repo.GetByID(ctx, post.ID, ListOptions{ViewerID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count.Likes)
	assert.Equal(t, int64(1), got.Count.Echoes, "deleted echoes are not counted")
	assert.Equal(t, int64(5), got.Count.Comments)
	assert.True(t, got.Liked)
	assert.True(t, got.Bookmarked)
	assert.Equal(t, []uint{bob.ID}, got.LikeUserIDs)
	assert.Len(t, got.Comments, 5, "detail view carries every comment")

	asAuthor, err := repo.GetByID(ctx, post.ID, ListOptions{ViewerID: ada.ID, CommentLimit: 3})
	require.NoError(t, err)
	assert.False(t, asAuthor.Liked)
	assert.False(t, asAuthor.Bookmarked)
	require.Len(t, asAuthor.Comments, 3)
	assert.Equal(t, "a", asAuthor.Comments[0].Content)
	assert.Equal(t, "c", asAuthor.Comments[2].Content)
	require.NotNil(t, asAuthor.Comments[0].Author)

	anonymous, err := repo.GetByID(ctx, post.ID, ListOptions{})
	require.NoError(t, err)
	assert.False(t, anonymous.Liked)

	_, err = repo.GetByID(ctx, 9999, ListOptions{})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_Feed(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")
	eve := testutil.CreateUser(t, db, "eve")

	own := testutil.CreatePost(t, db, ada.ID, "own", testutil.PublishedAt(now.Add(-3*time.Minute)))
	followed := testutil.CreatePost(t, db, bob.ID, "followed", testutil.PublishedAt(now.Add(-2*time.Minute)))
	testutil.CreatePost(t, db, eve.ID, "stranger", testutil.PublishedAt(now.Add(-time.Minute)))
	testutil.CreatePost(t, db, bob.ID, "scheduled", testutil.PublishedAt(now.Add(time.Hour)))
	deleted := testutil.CreatePost(t, db, bob.ID, "deleted", testutil.PublishedAt(now.Add(-30*time.Second)))
	require.NoError(t, repo.SoftDelete(ctx, deleted.ID))

	posts, err := repo.Feed(ctx, []uint{ada.ID, bob.ID}, visible(ada.ID))
	require.NoError(t, err)
	assert.Equal(t, []uint{followed.ID, own.ID}, postIDs(posts))

	opts := visible(ada.ID)
	opts.Offset, opts.Limit = 1, 1
	posts, err = repo.Feed(ctx, []uint{ada.ID, bob.ID}, opts)
	require.NoError(t, err)
	assert.Equal(t, []uint{own.ID}, postIDs(posts))

	later := visible(ada.ID)
	later.Now = now.Add(2 * time.Hour)
	posts, err = repo.Feed(ctx, []uint{ada.ID, bob.ID}, later)
	require.NoError(t, err)
	assert.Len(t, posts, 3, "scheduled posts appear once their time passes")

	posts, err = repo.Feed(ctx, nil, visible(ada.ID))
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_ParentsOneHop(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")
	root := testutil.CreatePost(t, db, ada.ID, "root")
	echo := testutil.CreatePost(t, db, bob.ID, "", testutil.EchoOf(root.ID))
	reply := testutil.CreatePost(t, db, bob.ID, "reply", testutil.ReplyTo(root.ID))

	got, err := repo.GetByID(ctx, echo.ID, ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got.EchoParent)
	assert.Equal(t, root.ID, got.EchoParent.ID)
	require.NotNil(t, got.EchoParent.Author)
	assert.Equal(t, "ada", got.EchoParent.Author.Name)

	replies, err := repo.ListReplies(ctx, root.ID, visible(0))
	require.NoError(t, err)
	assert.Equal(t, []uint{reply.ID}, postIDs(replies))
	require.NotNil(t, replies[0].ReplyTo)

	require.NoError(t, repo.SoftDelete(ctx, root.ID))
	got, err = repo.GetByID(ctx, echo.ID, ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, got.EchoParent, "deleted parents are not attached")
}

func TestPostRepository_UnpublishedParentsHidden(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")
	scheduled := testutil.CreatePost(t, db, ada.ID, "secret launch", testutil.PublishedAt(time.Now().UTC().Add(time.Hour)))
	echo := testutil.CreatePost(t, db, ada.ID, "", testutil.EchoOf(scheduled.ID))
	reply := testutil.CreatePost(t, db, ada.ID, "soon", testutil.ReplyTo(scheduled.ID))

	posts, err := repo.Feed(ctx, []uint{ada.ID}, visible(bob.ID))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint{echo.ID, reply.ID}, postIDs(posts))
	for _, p := range posts {
		assert.Nil(t, p.EchoParent, "post %d", p.ID)
		assert.Nil(t, p.ReplyTo, "post %d", p.ID)
	}

	got, err := repo.GetByID(ctx, echo.ID, ListOptions{ViewerID: ada.ID})
	require.NoError(t, err)
	require.NotNil(t, got.EchoParent, "authors see their own scheduled parent")
	assert.Equal(t, "secret launch", *got.EchoParent.Content)

	later := visible(bob.ID)
	later.Now = time.Now().UTC().Add(2 * time.Hour)
	got, err = repo.GetByID(ctx, echo.ID, later)
	require.NoError(t, err)
	assert.NotNil(t, got.EchoParent)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")

	content := "#old tag"
	post := &models.Post{AuthorID: ada.ID, Content: &content, PublishedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, post, []string{"old"}))

	updated := "#new tag"
	require.NoError(t, repo.UpdateContent(ctx, post.ID, &updated, []string{"new"}))
	got, err := repo.GetByID(ctx, post.ID, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "#new tag", *got.Content)
	require.Len(t, got.Hashtags, 1)
	assert.Equal(t, "new", got.Hashtags[0].Tag)

	require.NoError(t, repo.SoftDelete(ctx, post.ID))
	_, err = repo.GetByID(ctx, post.ID, ListOptions{})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	unscoped, err := repo.GetUnscoped(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, unscoped.DeletedAt.Valid)

	err = repo.SoftDelete(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	err = repo.UpdateContent(ctx, post.ID, &updated, nil)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_SearchHashtagAndBookmarks(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	ada := testutil.CreateUser(t, db, "ada")
	first := "Learning GO today #Go"
	second := "100% sure about #go"
	p1 := &models.Post{AuthorID: ada.ID, Content: &first, PublishedAt: now.Add(-2 * time.Minute)}
	p2 := &models.Post{AuthorID: ada.ID, Content: &second, PublishedAt: now.Add(-time.Minute)}
	require.NoError(t, repo.Create(ctx, p1, []string{"go"}))
	require.NoError(t, repo.Create(ctx, p2, []string{"go"}))

	found, err := repo.Search(ctx, "go", visible(ada.ID))
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID, p1.ID}, postIDs(found))

	found, err = repo.Search(ctx, "100%", visible(ada.ID))
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID}, postIDs(found))

	found, err = repo.Search(ctx, "_", visible(ada.ID))
	require.NoError(t, err)
	assert.Empty(t, found)

	tagged, err := repo.ListByHashtag(ctx, "go", visible(ada.ID))
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID, p1.ID}, postIDs(tagged))

	_, err = engagement.AddBookmark(ctx, ada.ID, p2.ID)
	require.NoError(t, err)
	_, err = engagement.AddBookmark(ctx, ada.ID, p1.ID)
	require.NoError(t, err)
	saved, err := repo.ListBookmarked(ctx, ada.ID, visible(ada.ID))
	require.NoError(t, err)
	assert.Equal(t, []uint{p1.ID, p2.ID}, postIDs(saved), "most recently saved first")
	assert.True(t, saved[0].Bookmarked)
}
