// Package docs holds the OpenAPI document of the coordinator status API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "description": "Read-only status API of the nmapcluster coordinator: queue depths and the inventory of scanned hosts.",
    "title": "nmapcluster coordinator API",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": [
    "http"
  ],
  "paths": {
    "/health": {
      "get": {
        "produces": [
          "application/json"
        ],
        "tags": [
          "System"
        ],
        "summary": "Health check",
        "responses": {
          "200": {
            "description": "OK",
            "schema": {
              "$ref": "#/definitions/api.HealthResponse"
            }
          }
        }
      }
    },
    "/api/v1/queues": {
      "get": {
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "description": "Number of items waiting in each shared queue. Tasks claimed by a worker are not counted.",
        "produces": [
          "application/json"
        ],
        "tags": [
          "Queues"
        ],
        "summary": "Queue depths",
        "responses": {
          "200": {
            "description": "OK",
            "schema": {
              "$ref": "#/definitions/api.QueuesResponse"
            }
          },
          "401": {
            "description": "Missing or incorrect API key",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "500": {
            "description": "Queue backend unavailable",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          }
        }
      }
    },
    "/api/v1/hosts": {
      "get": {
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "description": "Hosts that at least one port scan reported, ordered by address, with their open ports.",
        "produces": [
          "application/json"
        ],
        "tags": [
          "Hosts"
        ],
        "summary": "List discovered hosts",
        "responses": {
          "200": {
            "description": "OK",
            "schema": {
              "$ref": "#/definitions/api.HostsResponse"
            }
          },
          "401": {
            "description": "Missing or incorrect API key",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "500": {
            "description": "Inventory unavailable",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          }
        }
      }
    },
    "/api/v1/hosts/{addr}": {
      "get": {
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "produces": [
          "application/json"
        ],
        "tags": [
          "Hosts"
        ],
        "summary": "Get one host",
        "parameters": [
          {
            "type": "string",
            "description": "IPv4 or IPv6 address",
            "name": "addr",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {
            "description": "OK",
            "schema": {
              "$ref": "#/definitions/api.HostResponse"
            }
          },
          "400": {
            "description": "Malformed address",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "401": {
            "description": "Missing or incorrect API key",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "404": {
            "description": "Host was never port scanned",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "500": {
            "description": "Inventory unavailable",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          }
        }
      }
    }
  },
  "definitions": {
    "api.ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {
          "type": "string",
          "example": "host not found"
        }
      }
    },
    "api.HealthResponse": {
      "type": "object",
      "properties": {
        "status": {
          "type": "string",
          "example": "ok"
        }
      }
    },
    "api.QueuesResponse": {
      "type": "object",
      "properties": {
        "pending": {
          "description": "Pending is the number of scan tasks not yet claimed by a worker.",
          "type": "integer",
          "example": 52
        },
        "queues": {
          "description": "Queues maps a queue name (discovery, fast, medium, slow, results) to its length.",
          "type": "object",
          "additionalProperties": {
            "type": "integer"
          }
        }
      }
    },
    "api.HostsResponse": {
      "type": "object",
      "properties": {
        "count": {
          "type": "integer",
          "example": 3
        },
        "hosts": {
          "type": "array",
          "items": {
            "$ref": "#/definitions/store.HostRow"
          }
        }
      }
    },
    "api.HostResponse": {
      "type": "object",
      "properties": {
        "ip": {
          "type": "string",
          "example": "10.0.0.1"
        },
        "hostname": {
          "type": "string",
          "example": "gw.lab"
        },
        "os": {
          "type": "string",
          "example": "Linux 5.0 - 5.14"
        },
        "os_accuracy": {
          "type": "integer",
          "example": 98
        },
        "scanned_at": {
          "type": "string",
          "format": "date-time"
        },
        "ports": {
          "type": "array",
          "items": {
            "$ref": "#/definitions/store.PortRow"
          }
        },
        "scans": {
          "description": "Scans is the number of port scan reports stored for the host.",
          "type": "integer",
          "example": 4
        }
      }
    },
    "store.HostRow": {
      "type": "object",
      "properties": {
        "ip": {
          "type": "string",
          "example": "10.0.0.1"
        },
        "hostname": {
          "type": "string"
        },
        "os": {
          "type": "string"
        },
        "os_accuracy": {
          "type": "integer"
        },
        "scanned_at": {
          "type": "string",
          "format": "date-time"
        },
        "ports": {
          "type": "array",
          "items": {
            "$ref": "#/definitions/store.PortRow"
          }
        }
      }
    },
    "store.PortRow": {
      "type": "object",
      "properties": {
        "port": {
          "type": "integer",
          "example": 22
        },
        "protocol": {
          "type": "string",
          "example": "tcp"
        },
        "service": {
          "type": "string",
          "example": "ssh"
        },
        "tunnel": {
          "type": "string",
          "example": "ssl"
        },
        "service_version": {
          "type": "string",
          "example": "OpenSSH 9.6p1 (protocol 2.0)"
        },
        "confidence": {
          "type": "integer",
          "example": 10
        }
      }
    }
  },
  "securityDefinitions": {
    "ApiKeyAuth": {
      "description": "Bearer token: \"Authorization: Bearer <API_KEY>\"",
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  }
}
`

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}
