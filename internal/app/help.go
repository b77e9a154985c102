package app

// Description is the long help text shown by the CLI.
const Description = `Majestic Million Feed - domain ranking feed connector

Downloads the Majestic Million CSV and exposes it as the download_domains_csv
and get_domain_records operations, either from the command line or through
an HTTP API (serve).

ENVIRONMENT:
  MM_ENDPOINT                Feed URL (default: https://downloads.majestic.com/majestic_million.csv)
  MM_VERIFY_SSL              Verify TLS certificates (default: true)
  MM_TMP_FILE_ROOT           Directory downloads are written to (default: system temp dir)
  MM_CONNECT_TIMEOUT         Connect timeout in seconds (default: 10)
  MM_READ_TIMEOUT            Read timeout in seconds (default: 60)
  MM_RATE_LIMIT              Outbound requests per second, 0 disables (default: 0)
  MM_DB_PATH                 Run history database path (default: ./majestic.db)
  MM_HISTORY_RETENTION_DAYS  Run history retention in days (default: 30)
  MM_LOG_LEVEL               debug, info, warn or error (default: info)
  MM_LISTEN_ADDR             Address for serve (default: :8080)

A .env file in the working directory is loaded first when present.

EXAMPLES:
  # Download the feed to $MM_TMP_FILE_ROOT/majestic_million.csv
  majestic-million download

  # Print the top 10 domains as a Markdown table
  majestic-million records --limit 10 --format markdown

  # Write the top 1000 as CSV (creates top_<timestamp>.csv) and keep a snapshot
  majestic-million records -n 1000 -f csv -o top.csv --save`
