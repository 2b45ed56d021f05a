package server

import (
	"net"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/impromptu/api.impromptu.app/auth"
	"github.com/impromptu/api.impromptu.app/configure"
	"github.com/impromptu/api.impromptu.app/server/gql"
	"github.com/impromptu/api.impromptu.app/utils"

	log "github.com/sirupsen/logrus"
)

type Server struct {
	app *fiber.App
	ln  net.Listener
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func NewServer() *Server {
	ln, err := net.Listen(configure.Config.GetString("listener_network"), configure.Config.GetString("listener_address"))
	checkErr(err)

	server := &Server{
		ln: ln,
		app: fiber.New(fiber.Config{
			ErrorHandler: errorHandler,
		}),
	}

	server.app.Use(recover.New())
	server.app.Use(cors.New())
	server.app.Use(logger.New(logger.Config{
		Output: &customLogger{},
	}))
	server.app.Use(sessionMiddleware)

	gql.GQL(server.app)

	server.app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(&fiber.Map{
			"status":  404,
			"message": "We don't know what you're looking for.",
		})
	})

	go func() {
		err = server.app.Listener(server.ln)
		if err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server
}

// sessionMiddleware resolves the bearer token into a live session and parks
// it in locals. Requests without a session still pass, resolvers decide
// what needs one.
func sessionMiddleware(c *fiber.Ctx) error {
	token := c.Get("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		token = token[len("Bearer "):]
	}
	if token == "" {
		token = c.Query("token")
	}

	if token != "" {
		ok, err := auth.Check(token)
		if err != nil {
			log.Errorf("session, err=%v", err)
		} else if ok {
			c.Locals("session", token)
		}
	}
	return c.Next()
}

func errorHandler(c *fiber.Ctx, err error) error {
	log.Errorf("internal err=%v", spew.Sdump(err))

	return c.SendStatus(500)
}

func (s *Server) Shutdown() error {
	return s.ln.Close()
}
