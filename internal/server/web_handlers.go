package server

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/slug"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplates holds one parsed layout per page.
type pageTemplates struct {
	Index    *template.Template
	Post     *template.Template
	NotFound *template.Template
}

func parsePages() (*pageTemplates, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string { return t.Format("2 Jan 2006") },
	}

	makePage := func(name string) (*template.Template, error) {
		return template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
	}

	index, err := makePage("index")
	if err != nil {
		return nil, err
	}
	post, err := makePage("post")
	if err != nil {
		return nil, err
	}
	notFound, err := makePage("notfound")
	if err != nil {
		return nil, err
	}

	return &pageTemplates{Index: index, Post: post, NotFound: notFound}, nil
}

// contentPolicy is applied to rendered post bodies before they are marked
// safe for the page.
var contentPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("target").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
	return p
}()

type postCard struct {
	Title     string
	URL       string
	Thumbnail string
	ShareURL  string
	Status    string
	CreatedAt time.Time
}

type postPage struct {
	postCard
	Body template.HTML
}

func (s *Server) card(origin string, p *models.Post) postCard {
	canonical := p.CanonicalSlug()
	return postCard{
		Title:     p.Title,
		URL:       slug.PostURL("", canonical),
		Thumbnail: s.renderer.FirstImageURL(p.Content),
		ShareURL:  slug.ShareURL(p.Title, slug.PostURL(origin, canonical)),
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func renderPage(c *fiber.Ctx, status int, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "render page", "error", err.Error(), "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

// IndexPage handles GET /
func (s *Server) IndexPage(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "index page: list posts", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	origin := c.BaseURL()
	cards := make([]postCard, 0, len(posts))
	for i := range posts {
		cards = append(cards, s.card(origin, &posts[i]))
	}

	return renderPage(c, fiber.StatusOK, s.pages.Index, fiber.Map{"Posts": cards})
}

// PostPage handles GET /p/:slug. The slug may be the canonical slug, the
// stored slug or the post id.
func (s *Server) PostPage(c *fiber.Ctx) error {
	value := c.Params("slug")
	post, err := s.postService.FindBySlug(c.UserContext(), value)
	if err != nil {
		if models.StatusFor(err) == fiber.StatusNotFound {
			return renderPage(c, fiber.StatusNotFound, s.pages.NotFound, fiber.Map{"Slug": value})
		}
		middleware.Logger.ErrorContext(c.UserContext(), "post page: find post", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	body := contentPolicy.Sanitize(s.renderer.Render(post.Content))
	return renderPage(c, fiber.StatusOK, s.pages.Post, postPage{
		postCard: s.card(c.BaseURL(), post),
		Body:     template.HTML(body),
	})
}
