package sqlinline

const QSelectIntegrationToken = `--sql 50c74e1d-6aa5-405b-bbd0-f2c9effa70a8
select token
from integration_tokens
where provider = $1::text
  and token <> ''
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql 26e02af0-e43b-4d1b-a5e1-1056ce81bd89
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql 23abdbf8-83c6-4da3-886e-d7a7e212d834
delete from integration_tokens
where provider = $1::text;
`
