package server

import (
	"github.com/gofiber/fiber/v2"
)

// SearchPosts handles GET /api/search/posts?q=
// @Summary Search posts
// @Description Case-insensitive substring match on content; blank queries return nothing
// @Tags search
// @Produce json
// @Param q query string false "Query"
// @Success 200 {object} object{posts=[]models.Post}
// @Security BearerAuth
// @Router /search/posts [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.searchService.SearchPosts(c.UserContext(), currentUserID(c), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// SearchUsers handles GET /api/search/users?q=
// @Summary Search users
// @Tags search
// @Produce json
// @Param q query string false "Query"
// @Success 200 {object} object{users=[]models.PublicProfile}
// @Security BearerAuth
// @Router /search/users [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.searchService.SearchUsers(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// TrendingHashtags handles GET /api/search/trending-hashtags
// @Summary Trending hashtags
// @Tags search
// @Produce json
// @Success 200 {object} object{hashtags=[]models.TrendingHashtag}
// @Security BearerAuth
// @Router /search/trending-hashtags [get]
func (s *Server) TrendingHashtags(c *fiber.Ctx) error {
	tags, err := s.searchService.TrendingHashtags(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"hashtags": tags})
}

// PostsByHashtag handles GET /api/search/hashtags/:tag
// @Summary Posts carrying a hashtag
// @Tags search
// @Produce json
// @Param tag path string true "Hashtag, with or without #"
// @Success 200 {object} object{posts=[]models.Post}
// @Security BearerAuth
// @Router /search/hashtags/{tag} [get]
func (s *Server) PostsByHashtag(c *fiber.Ctx) error {
	posts, err := s.searchService.PostsByHashtag(c.UserContext(), currentUserID(c), c.Params("tag"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}
