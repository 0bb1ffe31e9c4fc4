package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ginJar adapts request/response cookies to session.CookieJar. Values written
// during the request are visible to later reads in the same request.
type ginJar struct {
	c       *gin.Context
	secure  bool
	written map[string]*string
}

func newGinJar(c *gin.Context, secure bool) *ginJar {
	return &ginJar{c: c, secure: secure, written: make(map[string]*string)}
}

func (j *ginJar) Get(name string) (string, bool) {
	if v, ok := j.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	v, err := j.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return v, true
}

func (j *ginJar) Set(name, value string, maxAge int) {
	if maxAge < 0 {
		j.written[name] = nil
	} else {
		v := value
		j.written[name] = &v
	}
	j.c.SetSameSite(http.SameSiteLaxMode)
	j.c.SetCookie(name, value, maxAge, "/", "", j.secure, false)
}
