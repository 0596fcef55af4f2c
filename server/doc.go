/*
Package server provides the HTTP interface for rendering planes of stored datasets.

Each dataset in a store is rendered with the channel settings found in the configured
settings directory, or with default settings that show every channel over the full
range of its pixel type.  Rendered images are kept in a cache shared by all datasets.

Configuration is read from a TOML file:

	[server]
	httpAddress = "localhost:8000"
	note = "Confocal stacks of the imaging core"
	allowedOrigins = ["http://viewer.example.org"]

	[render]
	maxWorkers = 8          # channels fetched and quantized at once, 0 = number of CPUs
	defaultFormat = "png"   # png, jpg, tif, bmp, or argb
	jpegQuality = 80

	[cache]
	mb = 256
	expireSeconds = 0       # 0 = cached images never expire

	[store]
	path = "/data/planerender"
	compression = "snappy"  # snappy, zstd, or none

	[settings]
	dir = "settings"        # holds <dataset>.json or <dataset>.yaml

	[logging]
	logfile = "/var/log/planerender.log"
	max_log_size = 500      # MB
	max_log_age = 30        # days

Relative paths are relative to the directory of the TOML file.  See WebAPIPath + "help"
for the HTTP API.
*/
package server
