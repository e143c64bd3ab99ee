package server

import (
	"time"

	"echoes/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Content     *string    `json:"content"`
	ImageURL    *string    `json:"imageUrl"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type echoPostRequest struct {
	Content     *string    `json:"content"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type editPostRequest struct {
	Content *string `json:"content"`
}

// GetFeed handles GET /api/posts/feed
// @Summary Home feed
// @Description Published posts by the viewer and the users they follow, newest first
// @Tags posts
// @Produce json
// @Param skip query int false "Posts to skip"
// @Param take query int false "Page size (1-100, default 20)"
// @Success 200 {object} object{posts=[]models.Post,me=models.PublicProfile}
// @Security BearerAuth
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	page := parsePagination(c, service.DefaultFeedTake)

	posts, err := s.feedService.GetFeed(ctx, userID, page.Skip, page.Take)
	if err != nil {
		return respondError(c, err)
	}
	me, err := s.userService.GetUser(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts, "me": me.Profile()})
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Text and/or image post. A future scheduledAt delays publication.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := bind(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:    currentUserID(c),
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetBookmarks handles GET /api/posts/bookmarks
// @Summary Bookmarked posts
// @Tags posts
// @Produce json
// @Success 200 {object} object{posts=[]models.Post}
// @Security BearerAuth
// @Router /posts/bookmarks [get]
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	posts, err := s.postService.GetBookmarks(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetPost handles GET /api/posts/:id
// @Summary Post detail
// @Description The post with every comment, oldest first
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{post=models.Post,me=models.PublicProfile}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	post, err := s.postService.GetPost(ctx, userID, postID)
	if err != nil {
		return respondError(c, err)
	}
	me, err := s.userService.GetUser(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"post": post, "me": me.Profile()})
}

// GetReplies handles GET /api/posts/:id/replies
// @Summary Replies to a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{replies=[]models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	replies, err := s.postService.GetPostReplies(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"replies": replies})
}

// GetEchoRoot handles GET /api/posts/:id/echo-root
// @Summary Original of an echo chain
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.EchoRoot
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/echo-root [get]
func (s *Server) GetEchoRoot(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	root, err := s.postService.FindEchoRoot(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(root)
}

// EchoPost handles POST /api/posts/:id/echo
// @Summary Echo a post
// @Description Re-share a post, optionally with a quote
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body echoPostRequest false "Quote"
// @Success 201 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/echo [post]
func (s *Server) EchoPost(c *fiber.Ctx) error {
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req echoPostRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return nil
		}
	}

	post, err := s.postService.EchoPost(c.UserContext(), service.EchoPostInput{
		ActorID:     currentUserID(c),
		ParentID:    parentID,
		Content:     req.Content,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// ReplyToPost handles POST /api/posts/:id/reply
// @Summary Reply to a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body createPostRequest true "Reply"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/reply [post]
func (s *Server) ReplyToPost(c *fiber.Ctx) error {
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req createPostRequest
	if err := bind(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.ReplyToPost(c.UserContext(), service.ReplyInput{
		ActorID:     currentUserID(c),
		ParentID:    parentID,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Description Idempotent; the author is notified on the first like only
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{ok=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.postService.Like(c.UserContext(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return ok(c)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{ok=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.postService.Unlike(c.UserContext(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return ok(c)
}

// ToggleLike handles POST /api/posts/:id/like/toggle
// @Summary Flip the like state
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like/toggle [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// ToggleBookmark handles POST /api/posts/:id/bookmark
// @Summary Flip the bookmark state
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/bookmark [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.ToggleBookmark(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// EditPost handles PATCH /api/posts/:id
// @Summary Edit own post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body editPostRequest true "New content"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [patch]
func (s *Server) EditPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req editPostRequest
	if err := bind(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.EditPost(c.UserContext(), service.EditPostInput{
		ActorID: currentUserID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete own post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{ok=bool}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return ok(c)
}
