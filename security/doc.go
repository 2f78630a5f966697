// Package security holds the TLS settings for outbound connections to the
// model sidecars (whisper, pyannote, the embedding service).
//
//	whisper:
//	  url: https://whisper.internal:9000
//	  tls:
//	    ca_file: /etc/meetscribe/ca.pem
//	    cert_file: /etc/meetscribe/client.pem
//	    key_file: /etc/meetscribe/client-key.pem
//
// A zero TLSConfig leaves the transport defaults in place.
package security
