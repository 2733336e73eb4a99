package attrax

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go-hiring-tracker/internal/browser"
	"go-hiring-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const boardHTML = `<!doctype html>
<html><body>
<div id="tiles"></div>
<div class="swiper-button-next"></div>
<script>
var pages = [
  [{id: "101", title: "Associate", loc: "London", dept: "Litigation", href: "/job/101"},
   {id: "102", title: "", loc: "", dept: "", href: "/job/102"}],
  [{id: "103", title: "Trainee", loc: "Gurgaon, India", dept: "Graduate", href: "/job/103"}]
];
var p = 0;
function render() {
  document.getElementById("tiles").innerHTML = pages[p].map(function (j) {
    return '<div class="attrax-vacancy-tile" data-jobid="' + j.id + '">' +
      '<a class="attrax-vacancy-tile__title" href="' + j.href + '">' + j.title + '</a>' +
      '<div class="attrax-vacancy-tile__option-location"><span class="attrax-vacancy-tile__item-value">' + j.loc + '</span></div>' +
      '<span class="team">' + j.dept + '</span>' +
      '</div>';
  }).join("");
  if (p === pages.length - 1) {
    document.querySelector(".swiper-button-next").classList.add("swiper-button-disabled");
  }
}
document.querySelector(".swiper-button-next").addEventListener("click", function () {
  if (p < pages.length - 1) { p++; render(); }
});
render();
</script>
</body></html>`

const detailHTML = `<!doctype html>
<html><body>
<h1>Paralegal</h1>
<nav id="506ab26f-a08d-47ed-acc8-80ac556e8636"><ol><li>Full Time</li><li>Hong Kong</li></ol></nav>
</body></html>`

// Drives a real browser against a local board; set TRACKER_BROWSER_TESTS=1
// with playwright's chromium installed.
func TestAttraxScraper_FetchAgainstFixture(t *testing.T) {
	if os.Getenv("TRACKER_BROWSER_TESTS") == "" {
		t.Skip("TRACKER_BROWSER_TESTS not set")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/board", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardHTML))
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(detailHTML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	log := zap.NewNop()
	s := NewAttraxScraper(browser.NewLauncher(browser.Options{Headless: true}, log), nil, Options{
		Selectors:     Selectors{Department: ".team"},
		NavTimeout:    10 * time.Second,
		DetailTimeout: 5 * time.Second,
		PageSettle:    100 * time.Millisecond,
		MaxPages:      10,
		Denylist:      []string{"full", "part", "permanent"},
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobs, err := s.Fetch(ctx, models.Portal{Name: "fixture", Kind: "attrax", Category: "all", URL: srv.URL + "/board"})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, models.Job{ID: "101", Title: "Associate", Location: "London", URL: srv.URL + "/job/101", Department: "Litigation"}, jobs[0])
	assert.Equal(t, "Paralegal", jobs[1].Title)
	assert.Equal(t, "Hong Kong", jobs[1].Location)
	assert.Equal(t, "Gurgaon, India", jobs[2].Location)
	assert.Equal(t, "Graduate", jobs[2].Department)
}
