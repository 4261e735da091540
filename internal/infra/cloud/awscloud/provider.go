// Package awscloud applies remediations against a real AWS account.
package awscloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	stssvc "github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/domain/remediation"
)

const anyIPv4 = "0.0.0.0/0"

type Provider struct {
	clients Clients

	// accountID is cached once STS answered; failures are retried.
	accountMu sync.Mutex
	accountID string
}

// New loads the shared AWS config for profile. An empty profile uses the
// default chain; an empty region falls back to us-east-1.
func New(ctx context.Context, profile, region string) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return NewWithClients(Clients{
		S3:  s3svc.NewFromConfig(cfg),
		EC2: ec2svc.NewFromConfig(cfg),
		IAM: iamsvc.NewFromConfig(cfg),
		STS: stssvc.NewFromConfig(cfg),
	}), nil
}

func NewWithClients(c Clients) *Provider {
	return &Provider{clients: c}
}

// SetBucketPrivate turns on every S3 public access block flag for the bucket.
func (p *Provider) SetBucketPrivate(ctx context.Context, t remediation.Target) error {
	if t.Name == "" {
		return fmt.Errorf("bucket name unknown for resource %d", t.ResourceID)
	}
	_, err := p.clients.S3.PutPublicAccessBlock(ctx, &s3svc.PutPublicAccessBlockInput{
		Bucket: aws.String(t.Name),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}, withS3Region(t.Location))
	if err != nil {
		return fmt.Errorf("put public access block on %s: %w", t.Name, err)
	}
	zerolog.Ctx(ctx).Info().Str("bucket", t.Name).Msg("public access blocked")
	return nil
}

// RevokeOpenRule removes the all-traffic 0.0.0.0/0 ingress permission.
// Names starting with "sg-" are treated as group ids.
func (p *Provider) RevokeOpenRule(ctx context.Context, t remediation.Target) error {
	if t.Name == "" {
		return fmt.Errorf("security group unknown for resource %d", t.ResourceID)
	}
	in := &ec2svc.RevokeSecurityGroupIngressInput{
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("-1"),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(anyIPv4)}},
		}},
	}
	if strings.HasPrefix(t.Name, "sg-") {
		in.GroupId = aws.String(t.Name)
	} else {
		in.GroupName = aws.String(t.Name)
	}
	_, err := p.clients.EC2.RevokeSecurityGroupIngress(ctx, in, withEC2Region(t.Location))
	if err != nil {
		return fmt.Errorf("revoke ingress on %s: %w", t.Name, err)
	}
	zerolog.Ctx(ctx).Info().Str("security_group", t.Name).Msg("open ingress revoked")
	return nil
}

// RestrictPrincipal replaces the role trust policy with one that only trusts
// the account root.
func (p *Provider) RestrictPrincipal(ctx context.Context, t remediation.Target) error {
	if t.Name == "" {
		return fmt.Errorf("role name unknown for resource %d", t.ResourceID)
	}
	account, err := p.account(ctx)
	if err != nil {
		return err
	}
	doc, err := trustPolicy(account)
	if err != nil {
		return err
	}
	_, err = p.clients.IAM.UpdateAssumeRolePolicy(ctx, &iamsvc.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(t.Name),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("update trust policy of %s: %w", t.Name, err)
	}
	zerolog.Ctx(ctx).Info().Str("role", t.Name).Str("account", account).Msg("trust policy restricted")
	return nil
}

func (p *Provider) account(ctx context.Context) (string, error) {
	p.accountMu.Lock()
	defer p.accountMu.Unlock()
	if p.accountID != "" {
		return p.accountID, nil
	}
	out, err := p.clients.STS.GetCallerIdentity(ctx, &stssvc.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if aws.ToString(out.Account) == "" {
		return "", fmt.Errorf("STS GetCallerIdentity returned no account")
	}
	p.accountID = aws.ToString(out.Account)
	return p.accountID, nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
	Action    string            `json:"Action"`
}

func trustPolicy(account string) (string, error) {
	b, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"AWS": "arn:aws:iam::" + account + ":root"},
			Action:    "sts:AssumeRole",
		}},
	})
	return string(b), err
}

func withS3Region(region string) func(*s3svc.Options) {
	return func(o *s3svc.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func withEC2Region(region string) func(*ec2svc.Options) {
	return func(o *ec2svc.Options) {
		if region != "" {
			o.Region = region
		}
	}
}
