package transport

import "github.com/tsawler/pdfrange/internal/logging"

var logger = logging.GetLogger("transport")
