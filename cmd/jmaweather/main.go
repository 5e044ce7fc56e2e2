package main

import (
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/ingest"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name='env-file',default='.env',help='Path to .env file.'"`

	DB          string        `name:"db" default:"data/jmaweather.db" env:"JMA_DB" help:"Path to SQLite database."`
	AreaURL     string        `name:"area-url" default:"${area_url}" env:"JMA_AREA_URL" help:"Area catalog URL."`
	ForecastURL string        `name:"forecast-url" default:"${forecast_url}" env:"JMA_FORECAST_URL" help:"Forecast URL template; %s is replaced by the area code."`
	FTPAddr     string        `name:"ftp-addr" env:"JMA_FTP_ADDR" help:"Fetch forecasts from this FTP mirror (host:port) instead of HTTP."`
	FTPDir      string        `name:"ftp-dir" default:"/forecast" env:"JMA_FTP_DIR" help:"Directory holding {code}.json on the FTP mirror."`
	FTPUser     string        `name:"ftp-user" env:"JMA_FTP_USER" help:"FTP user (anonymous when empty)."`
	FTPPassword string        `name:"ftp-password" env:"JMA_FTP_PASSWORD" help:"FTP password."`
	Window      int           `name:"window" default:"${window}" env:"JMA_WINDOW" help:"Forecast days to keep per refresh."`
	Timeout     time.Duration `name:"timeout" default:"30s" env:"JMA_TIMEOUT" help:"Upstream request timeout."`
	LogLevel    string        `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"JMA_LOG_LEVEL" help:"Log level."`
	LogFormat   string        `name:"log-format" default:"console" enum:"console,json" env:"JMA_LOG_FORMAT" help:"Log encoding."`

	Areas   AreasCmd   `cmd:"" help:"List forecast areas."`
	Refresh RefreshCmd `cmd:"" help:"Fetch, align and store forecasts for areas."`
	Query   QueryCmd   `cmd:"" help:"Show stored forecasts for a date."`
	Replay  ReplayCmd  `cmd:"" help:"Re-align an archived raw payload without storing it."`
	Runs    RunsCmd    `cmd:"" help:"Show recent ingest runs."`
	Serve   ServeCmd   `cmd:"" help:"Serve the HTTP API and refresh areas periodically."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("jmaweather"),
		kong.Description("Japan Meteorological Agency forecast extraction and storage."),
		kong.UsageOnError(),
		kong.Vars{
			"area_url":     ingest.DefaultAreaURL,
			"forecast_url": ingest.DefaultForecastURLTemplate,
			"window":       strconv.Itoa(forecast.DefaultWindow),
		},
	)

	a, err := newApp(&cli)
	ctx.FatalIfErrorf(err)
	defer a.Close()

	ctx.FatalIfErrorf(ctx.Run(a))
}
